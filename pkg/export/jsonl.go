package export

import (
	"io"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	jsonpool "github.com/ajitpratap0/ctfkit/pkg/json"
)

// jsonSequence is the JSON Lines form of one sequence.
type jsonSequence[T ctf.Number] struct {
	ID      uint64          `json:"id"`
	Comment string          `json:"comment,omitempty"`
	Streams []jsonStream[T] `json:"streams"`
}

type jsonStream[T ctf.Number] struct {
	Name      string      `json:"name"`
	Storage   ctf.Storage `json:"storage"`
	Dimension int         `json:"dimension"`
	Indices   []uint64    `json:"indices,omitempty"`
	Values    []T         `json:"values"`
}

// jsonlWriter implements Writer for JSON Lines
type jsonlWriter[T ctf.Number] struct {
	compressed io.WriteCloser
	encoder    *jsonpool.StreamingEncoder
	written    int64
}

func newJSONLWriter[T ctf.Number](w io.Writer, opts Options) (*jsonlWriter[T], error) {
	compressed, err := compression.NewWriter(opts.Compression, opts.Level, w)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create JSONL compressor")
	}
	return &jsonlWriter[T]{
		compressed: compressed,
		encoder:    jsonpool.NewStreamingEncoder(compressed, false),
	}, nil
}

func (jw *jsonlWriter[T]) WriteSequence(seq ctf.TypedSequence[T]) error {
	out := jsonSequence[T]{
		ID:      seq.ID,
		Comment: seq.Comment,
		Streams: make([]jsonStream[T], len(seq.Records)),
	}
	for i, rec := range seq.Records {
		values := rec.Values
		if values == nil {
			values = []T{}
		}
		out.Streams[i] = jsonStream[T]{
			Name:      rec.Stream,
			Storage:   rec.Storage,
			Dimension: rec.Dimension,
			Indices:   rec.Indices,
			Values:    values,
		}
	}
	if err := jw.encoder.Encode(out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSONL sequence").
			WithDetail("sequence_id", seq.ID)
	}
	jw.written++
	return nil
}

func (jw *jsonlWriter[T]) Close() error {
	if err := jw.encoder.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish JSONL output")
	}
	if err := jw.compressed.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush JSONL compressor")
	}
	return nil
}

func (jw *jsonlWriter[T]) Format() Format {
	return JSONL
}

func (jw *jsonlWriter[T]) SequencesWritten() int64 {
	return jw.written
}
