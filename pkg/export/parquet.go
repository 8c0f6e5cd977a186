package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// parquetWriter implements Writer for Parquet files. The column layout is
// the Arrow one; each batch becomes a row group.
type parquetWriter[T ctf.Number] struct {
	rows       *arrowRows[T]
	fileWriter *pqarrow.FileWriter
	batchSize  int
	written    int64
}

func newParquetWriter[T ctf.Number](w io.Writer, schema ctf.Schema, opts Options) (*parquetWriter[T], error) {
	codec, err := parquetCompression(opts.Compression)
	if err != nil {
		return nil, err
	}

	pool := memory.NewGoAllocator()
	rows, err := newArrowRows[T](pool, schema)
	if err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(pool),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(rows.arrowSchema, w, props, arrowProps)
	if err != nil {
		rows.release()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
	}

	return &parquetWriter[T]{
		rows:       rows,
		fileWriter: fw,
		batchSize:  opts.BatchSize,
	}, nil
}

func (pw *parquetWriter[T]) WriteSequence(seq ctf.TypedSequence[T]) error {
	if err := pw.rows.append(seq); err != nil {
		return err
	}
	pw.written++
	if pw.rows.pending >= pw.batchSize {
		return pw.flushBatch()
	}
	return nil
}

func (pw *parquetWriter[T]) Close() error {
	defer pw.rows.release()
	if err := pw.flushBatch(); err != nil {
		return err
	}
	if err := pw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

func (pw *parquetWriter[T]) Format() Format {
	return Parquet
}

func (pw *parquetWriter[T]) SequencesWritten() int64 {
	return pw.written
}

func (pw *parquetWriter[T]) flushBatch() error {
	return pw.rows.flush(func(record arrow.Record) error {
		if err := pw.fileWriter.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row group")
		}
		return nil
	})
}

// parquetCompression maps a stream algorithm onto a Parquet page codec.
func parquetCompression(algo compression.Algorithm) (compress.Compression, error) {
	switch algo {
	case compression.None:
		return compress.Codecs.Uncompressed, nil
	case compression.Snappy:
		return compress.Codecs.Snappy, nil
	case compression.Gzip:
		return compress.Codecs.Gzip, nil
	case compression.Zstd:
		return compress.Codecs.Zstd, nil
	case compression.LZ4:
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeCapability,
			"parquet output does not support %s page compression", algo)
	}
}
