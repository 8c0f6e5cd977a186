package export

import (
	"io"
	"reflect"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	jsonpool "github.com/ajitpratap0/ctfkit/pkg/json"
)

// avroWriter implements Writer for Avro object container files. Each
// sequence becomes one record: id, comment and one array field per dense
// stream or an indices/values pair of arrays per sparse stream.
type avroWriter[T ctf.Number] struct {
	codec     *goavro.Codec
	ocfWriter *goavro.OCFWriter
	schema    ctf.Schema
	fields    [][2]string
	batch     []interface{}
	batchSize int
	written   int64
}

func newAvroWriter[T ctf.Number](w io.Writer, schema ctf.Schema, opts Options) (*avroWriter[T], error) {
	avroSchema, fields, err := avroSchemaFor[T](schema)
	if err != nil {
		return nil, err
	}

	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(opts.AvroCodec),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}

	return &avroWriter[T]{
		codec:     codec,
		ocfWriter: ocfWriter,
		schema:    schema,
		fields:    fields,
		batch:     make([]interface{}, 0, opts.BatchSize),
		batchSize: opts.BatchSize,
	}, nil
}

func (aw *avroWriter[T]) WriteSequence(seq ctf.TypedSequence[T]) error {
	if len(seq.Records) != len(aw.schema) {
		return errors.Newf(errors.ErrorTypeValidation, "sequence %d has %d records for %d streams",
			seq.ID, len(seq.Records), len(aw.schema))
	}

	native := map[string]interface{}{
		"id":      int64(seq.ID),
		"comment": seq.Comment,
	}
	for i, rec := range seq.Records {
		names := aw.fields[i]
		if aw.schema[i].Storage == ctf.Sparse {
			indices := make([]interface{}, len(rec.Indices))
			for j, idx := range rec.Indices {
				indices[j] = int64(idx)
			}
			native[names[0]] = indices
			native[names[1]] = avroValues(rec.Values)
			continue
		}
		native[names[1]] = avroValues(rec.Values)
	}

	aw.batch = append(aw.batch, native)
	aw.written++
	if len(aw.batch) >= aw.batchSize {
		return aw.flushBatch()
	}
	return nil
}

func (aw *avroWriter[T]) Close() error {
	return aw.flushBatch()
}

func (aw *avroWriter[T]) Format() Format {
	return Avro
}

func (aw *avroWriter[T]) SequencesWritten() int64 {
	return aw.written
}

func (aw *avroWriter[T]) flushBatch() error {
	if len(aw.batch) == 0 {
		return nil
	}
	if err := aw.ocfWriter.Append(aw.batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro block")
	}
	aw.batch = aw.batch[:0]
	return nil
}

// avroSchemaFor builds the record schema for T and returns, per stream, the
// indices and values field names. Dense streams have no indices field.
// Sequence ids above math.MaxInt64 wrap, as Avro has no unsigned long.
func avroSchemaFor[T ctf.Number](schema ctf.Schema) (string, [][2]string, error) {
	item, err := avroItemType[T]()
	if err != nil {
		return "", nil, err
	}

	type field struct {
		Name string      `json:"name"`
		Type interface{} `json:"type"`
		Doc  string      `json:"doc,omitempty"`
	}
	array := func(items string) map[string]string {
		return map[string]string{"type": "array", "items": items}
	}

	fields := []field{
		{Name: "id", Type: "long"},
		{Name: "comment", Type: "string"},
	}
	names := make([][2]string, len(schema))
	for i, e := range schema {
		doc := e.Kind.String() + " " + e.Storage.String()
		if e.Storage == ctf.Sparse {
			names[i] = [2]string{columnName(e.Name, "indices"), columnName(e.Name, "values")}
			fields = append(fields,
				field{Name: names[i][0], Type: array("long"), Doc: doc},
				field{Name: names[i][1], Type: array(item), Doc: doc},
			)
			continue
		}
		names[i] = [2]string{"", columnName(e.Name, "values")}
		fields = append(fields, field{Name: names[i][1], Type: array(item), Doc: doc})
	}

	data, err := jsonpool.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      "Sequence",
		"namespace": "ctfkit",
		"fields":    fields,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return string(data), names, nil
}

func avroItemType[T ctf.Number]() (string, error) {
	switch elementKind[T]() {
	case reflect.Float32:
		return "float", nil
	case reflect.Float64:
		return "double", nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return "int", nil
	case reflect.Int64:
		return "long", nil
	default:
		return "", errors.New(errors.ErrorTypeCapability, "unsupported Avro element type")
	}
}

// avroValues converts values to the native types goavro expects for the
// item type chosen by avroItemType.
func avroValues[T ctf.Number](values []T) []interface{} {
	out := make([]interface{}, len(values))
	switch elementKind[T]() {
	case reflect.Float32:
		for i, v := range values {
			out[i] = float32(v)
		}
	case reflect.Float64:
		for i, v := range values {
			out[i] = float64(v)
		}
	case reflect.Int64:
		for i, v := range values {
			out[i] = int64(v)
		}
	default:
		for i, v := range values {
			out[i] = int32(v)
		}
	}
	return out
}

func avroCompression(codec string) string {
	switch codec {
	case "deflate":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}
