package export

import (
	"io"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// ctfWriter implements Writer for CTF text
type ctfWriter[T ctf.Number] struct {
	compressed io.WriteCloser
	single     ctf.TypedDataset[T]
	written    int64
}

func newCTFWriter[T ctf.Number](w io.Writer, opts Options) (*ctfWriter[T], error) {
	compressed, err := compression.NewWriter(opts.Compression, opts.Level, w)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create CTF compressor")
	}
	return &ctfWriter[T]{
		compressed: compressed,
		single:     ctf.TypedDataset[T]{Sequences: make([]ctf.TypedSequence[T], 1)},
	}, nil
}

func (cw *ctfWriter[T]) WriteSequence(seq ctf.TypedSequence[T]) error {
	cw.single.Sequences[0] = seq
	if err := ctf.WriteTyped(cw.compressed, &cw.single); err != nil {
		return err
	}
	cw.written++
	return nil
}

func (cw *ctfWriter[T]) Close() error {
	if err := cw.compressed.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush CTF compressor")
	}
	return nil
}

func (cw *ctfWriter[T]) Format() Format {
	return CTF
}

func (cw *ctfWriter[T]) SequencesWritten() int64 {
	return cw.written
}
