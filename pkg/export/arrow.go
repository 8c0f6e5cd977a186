package export

import (
	"io"
	"reflect"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// arrowRows appends sequences as rows of a record builder: id, comment,
// then a list column per dense stream or a pair of list columns (indices,
// values) per sparse stream. Arrow and Parquet output share it.
type arrowRows[T ctf.Number] struct {
	arrowSchema *arrow.Schema
	builder     *array.RecordBuilder
	schema      ctf.Schema
	// columns[i] is the first column of stream i
	columns []int
	pending int
}

func newArrowRows[T ctf.Number](pool memory.Allocator, schema ctf.Schema) (*arrowRows[T], error) {
	item, err := arrowItemType[T]()
	if err != nil {
		return nil, err
	}
	arrowSchema, columns := arrowSchemaFor(schema, item)
	return &arrowRows[T]{
		arrowSchema: arrowSchema,
		builder:     array.NewRecordBuilder(pool, arrowSchema),
		schema:      schema,
		columns:     columns,
	}, nil
}

func (r *arrowRows[T]) append(seq ctf.TypedSequence[T]) error {
	if len(seq.Records) != len(r.schema) {
		return errors.Newf(errors.ErrorTypeValidation, "sequence %d has %d records for %d streams",
			seq.ID, len(seq.Records), len(r.schema))
	}

	r.builder.Field(0).(*array.Uint64Builder).Append(seq.ID)
	r.builder.Field(1).(*array.StringBuilder).Append(seq.Comment)
	for i, rec := range seq.Records {
		col := r.columns[i]
		if r.schema[i].Storage == ctf.Sparse {
			lb := r.builder.Field(col).(*array.ListBuilder)
			lb.Append(true)
			lb.ValueBuilder().(*array.Uint64Builder).AppendValues(rec.Indices, nil)
			col++
		}
		lb := r.builder.Field(col).(*array.ListBuilder)
		lb.Append(true)
		if err := appendArrowValues(lb.ValueBuilder(), rec.Values); err != nil {
			return err
		}
	}
	r.pending++
	return nil
}

// flush hands the pending rows to write as one record. It is a no-op when
// nothing is pending.
func (r *arrowRows[T]) flush(write func(arrow.Record) error) error {
	if r.pending == 0 {
		return nil
	}
	record := r.builder.NewRecord()
	defer record.Release()
	r.pending = 0
	return write(record)
}

func (r *arrowRows[T]) release() {
	r.builder.Release()
}

// arrowWriter implements Writer for Arrow IPC files, one row per sequence.
type arrowWriter[T ctf.Number] struct {
	rows       *arrowRows[T]
	fileWriter *ipc.FileWriter
	batchSize  int
	written    int64
}

func newArrowWriter[T ctf.Number](w io.Writer, schema ctf.Schema, opts Options) (*arrowWriter[T], error) {
	pool := memory.NewGoAllocator()
	rows, err := newArrowRows[T](pool, schema)
	if err != nil {
		return nil, err
	}

	ipcOpts := []ipc.Option{ipc.WithSchema(rows.arrowSchema), ipc.WithAllocator(pool)}
	switch opts.Compression {
	case compression.None:
	case compression.Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case compression.LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	default:
		rows.release()
		return nil, errors.Newf(errors.ErrorTypeCapability,
			"arrow output supports zstd or lz4 buffer compression, not %s", opts.Compression)
	}

	fw, err := ipc.NewFileWriter(w, ipcOpts...)
	if err != nil {
		rows.release()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow writer")
	}

	return &arrowWriter[T]{
		rows:       rows,
		fileWriter: fw,
		batchSize:  opts.BatchSize,
	}, nil
}

func (aw *arrowWriter[T]) WriteSequence(seq ctf.TypedSequence[T]) error {
	if err := aw.rows.append(seq); err != nil {
		return err
	}
	aw.written++
	if aw.rows.pending >= aw.batchSize {
		return aw.flushBatch()
	}
	return nil
}

func (aw *arrowWriter[T]) Close() error {
	defer aw.rows.release()
	if err := aw.flushBatch(); err != nil {
		return err
	}
	if err := aw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow writer")
	}
	return nil
}

func (aw *arrowWriter[T]) Format() Format {
	return Arrow
}

func (aw *arrowWriter[T]) SequencesWritten() int64 {
	return aw.written
}

func (aw *arrowWriter[T]) flushBatch() error {
	return aw.rows.flush(func(record arrow.Record) error {
		if err := aw.fileWriter.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
		}
		return nil
	})
}

// arrowSchemaFor lays out the columns and records each stream's kind,
// storage and dimension as field metadata.
func arrowSchemaFor(schema ctf.Schema, item arrow.DataType) (*arrow.Schema, []int) {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "comment", Type: arrow.BinaryTypes.String},
	}
	columns := make([]int, len(schema))
	for i, e := range schema {
		columns[i] = len(fields)
		md := arrow.NewMetadata(
			[]string{"ctf.stream", "ctf.kind", "ctf.storage", "ctf.dimension"},
			[]string{e.Name, e.Kind.String(), e.Storage.String(), strconv.Itoa(e.Dimension)},
		)
		if e.Storage == ctf.Sparse {
			fields = append(fields, arrow.Field{
				Name:     columnName(e.Name, "indices"),
				Type:     arrow.ListOf(arrow.PrimitiveTypes.Uint64),
				Metadata: md,
			})
		}
		fields = append(fields, arrow.Field{
			Name:     columnName(e.Name, "values"),
			Type:     arrow.ListOf(item),
			Metadata: md,
		})
	}
	return arrow.NewSchema(fields, nil), columns
}

func arrowItemType[T ctf.Number]() (arrow.DataType, error) {
	switch elementKind[T]() {
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case reflect.Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case reflect.Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case reflect.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case reflect.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported Arrow element type")
	}
}

func appendArrowValues[T ctf.Number](builder array.Builder, values []T) error {
	switch b := builder.(type) {
	case *array.Float32Builder:
		for _, v := range values {
			b.Append(float32(v))
		}
	case *array.Float64Builder:
		for _, v := range values {
			b.Append(float64(v))
		}
	case *array.Int8Builder:
		for _, v := range values {
			b.Append(int8(v))
		}
	case *array.Int16Builder:
		for _, v := range values {
			b.Append(int16(v))
		}
	case *array.Int32Builder:
		for _, v := range values {
			b.Append(int32(v))
		}
	case *array.Int64Builder:
		for _, v := range values {
			b.Append(int64(v))
		}
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unexpected Arrow builder %T", builder)
	}
	return nil
}
