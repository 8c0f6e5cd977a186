// Package export writes typed CTF datasets to other file formats.
//
// # Formats
//
//   - JSONL: one JSON object per sequence (goccy/go-json)
//   - Avro: an object container file, one record per sequence
//   - Arrow: an IPC file, one row per sequence with list columns
//   - Parquet: the Arrow layout written through pqarrow
//   - CTF: the round-trip text writer of pkg/ctf
//
// JSONL and CTF output can be wrapped in any pkg/compression stream. Arrow
// supports zstd and lz4 buffer compression, Parquet maps the algorithm onto
// its page codec and Avro uses its own block codec.
//
// # Basic Usage
//
//	typed, err := ctf.Load[float32](ctx, "train.ctf", schema, ctf.Config{})
//	if err != nil {
//	    return err
//	}
//	stats, err := export.ExportFile(ctx, "train.arrow", typed, export.Options{Format: export.Arrow})
package export

import (
	"context"
	"io"
	"os"
	"reflect"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/metrics"
	"github.com/ajitpratap0/ctfkit/pkg/observability"
)

// Format represents an output format
type Format string

const (
	// JSONL is JSON Lines
	JSONL Format = "jsonl"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
	// Arrow is an Apache Arrow IPC file
	Arrow Format = "arrow"
	// Parquet is an Apache Parquet file
	Parquet Format = "parquet"
	// CTF is CNTK text format
	CTF Format = "ctf"
)

// ParseFormat converts a configuration string into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case JSONL, Avro, Arrow, Parquet, CTF:
		return f, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported export format %q", s)
	}
}

// Writer writes typed sequences in one output format.
type Writer[T ctf.Number] interface {
	// WriteSequence writes a single sequence
	WriteSequence(seq ctf.TypedSequence[T]) error
	// Close flushes buffered data and finalizes the output. It does not
	// close the underlying io.Writer.
	Close() error
	// Format returns the output format
	Format() Format
	// SequencesWritten returns sequences written
	SequencesWritten() int64
}

// Options configures a writer.
type Options struct {
	Format Format
	// Compression wraps JSONL and CTF output; Arrow accepts zstd and lz4,
	// Parquet every algorithm but s2.
	// Auto is resolved from the output path by ExportFile.
	Compression compression.Algorithm
	Level       compression.Level
	// AvroCodec is null, deflate or snappy
	AvroCodec string
	// BatchSize is the number of sequences per Arrow record batch or
	// Parquet row group
	BatchSize int
}

// DefaultBatchSize is the Arrow record batch size used when Options leaves
// it unset.
const DefaultBatchSize = 1024

func (o Options) normalized() Options {
	if o.Compression == "" || o.Compression == compression.Auto {
		o.Compression = compression.None
	}
	if o.Level == 0 {
		o.Level = compression.Default
	}
	if o.AvroCodec == "" {
		o.AvroCodec = "null"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Stats summarises an export.
type Stats struct {
	Format    Format `json:"format"`
	Sequences int64  `json:"sequences"`
	Bytes     int64  `json:"bytes"`
}

// NewWriter creates a writer for opts.Format. schema fixes the column layout
// of the columnar formats.
func NewWriter[T ctf.Number](w io.Writer, schema ctf.Schema, opts Options) (Writer[T], error) {
	opts = opts.normalized()
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	switch opts.Format {
	case JSONL:
		return newJSONLWriter[T](w, opts)
	case Avro:
		if opts.Compression != compression.None {
			return nil, errors.Newf(errors.ErrorTypeCapability,
				"avro output is compressed by its codec, not %s", opts.Compression)
		}
		return newAvroWriter[T](w, schema, opts)
	case Arrow:
		return newArrowWriter[T](w, schema, opts)
	case Parquet:
		return newParquetWriter[T](w, schema, opts)
	case CTF:
		return newCTFWriter[T](w, opts)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported export format %q", opts.Format)
	}
}

// Export writes every sequence of ds to w.
func Export[T ctf.Number](ctx context.Context, w io.Writer, ds *ctf.TypedDataset[T], opts Options) (Stats, error) {
	stats := Stats{Format: opts.Format}
	if ds == nil {
		return stats, errors.New(errors.ErrorTypeValidation, "export requires a typed dataset")
	}
	err := observability.Trace(ctx, "ctf.export", func(ctx context.Context, span *observability.Span) error {
		log := logger.WithContext(ctx)
		timer := metrics.NewTimer(metrics.StageExport)
		defer timer.ObserveDuration()

		cw := &countingWriter{w: w}
		wr, err := NewWriter[T](cw, ds.Schema, opts)
		if err != nil {
			return err
		}
		for _, seq := range ds.Sequences {
			if err := ctx.Err(); err != nil {
				_ = wr.Close()
				return errors.Wrap(err, errors.ErrorTypeInternal, "export cancelled")
			}
			if err := wr.WriteSequence(seq); err != nil {
				_ = wr.Close()
				return err
			}
		}
		if err := wr.Close(); err != nil {
			return err
		}

		stats.Sequences = wr.SequencesWritten()
		stats.Bytes = cw.n
		metrics.ExportedSequences.WithLabelValues(string(opts.Format)).Add(float64(stats.Sequences))
		span.SetAttribute("export.format", string(opts.Format))
		span.SetAttribute("export.sequences", stats.Sequences)
		span.SetAttribute("export.bytes", stats.Bytes)
		log.Debug("dataset exported",
			zap.String("format", string(opts.Format)),
			zap.Int64("sequences", stats.Sequences),
			zap.Int64("bytes", stats.Bytes),
		)
		return nil
	})
	return stats, err
}

// ExportFile creates path and exports ds into it. Auto compression is
// resolved from the extension of path.
func ExportFile[T ctf.Number](ctx context.Context, path string, ds *ctf.TypedDataset[T], opts Options) (stats Stats, err error) {
	opts.Compression = opts.Compression.Resolve(path)

	f, err := os.Create(path) //nolint:gosec // G304: path is supplied by the caller
	if err != nil {
		return Stats{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output file").
				WithDetail("path", path)
		}
	}()
	return Export(ctx, f, ds, opts)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write export output")
	}
	return n, nil
}

// elementKind is the reflect kind behind T, so named element types map to
// the same column types as their underlying type.
func elementKind[T ctf.Number]() reflect.Kind {
	var zero T
	return reflect.TypeOf(zero).Kind()
}

// columnName turns a stream name into a valid Avro/Arrow field name. Stream
// names are alphanumeric, so the suffix keeps them apart from the id and
// comment columns; a leading digit gets an underscore prefix.
func columnName(stream, suffix string) string {
	if stream[0] >= '0' && stream[0] <= '9' {
		stream = "_" + stream
	}
	return stream + "_" + suffix
}
