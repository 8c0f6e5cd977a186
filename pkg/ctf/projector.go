package ctf

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/metrics"
	"github.com/ajitpratap0/ctfkit/pkg/observability"
)

// Project reinterprets a parsed dataset through schema. Sequences keep
// ascending id order and every sequence gets one record per schema entry,
// in schema order. Samples of streams missing from the schema are dropped.
func Project[T Number](ctx context.Context, ds *Dataset, schema Schema) (*TypedDataset[T], error) {
	log := observability.NewOperationLogger(ctx, logger.WithContext(ctx), "project")
	return projectTraced[T](ctx, ds, schema, log)
}

func projectTraced[T Number](ctx context.Context, ds *Dataset, schema Schema, log *observability.OperationLogger) (*TypedDataset[T], error) {
	var out *TypedDataset[T]
	err := observability.Trace(ctx, "ctf.project", func(ctx context.Context, span *observability.Span) error {
		timer := metrics.NewTimer(metrics.StageProject)
		defer timer.ObserveDuration()

		typed, err := project[T](ds, schema, func(stream string) {
			log.Warn("ignoring samples of stream not in schema", zap.String("stream", stream))
			span.AddEvent("ctf.stream_ignored", attribute.String("ctf.stream", stream))
		})
		if err != nil {
			countFormatError(err)
			return err
		}
		span.SetAttribute("ctf.sequences", typed.Len())
		span.SetAttribute("ctf.streams", len(schema))
		out = typed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// project does the actual projection. ignored is called once per unknown
// stream name.
func project[T Number](ds *Dataset, schema Schema, ignored func(stream string)) (*TypedDataset[T], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(schema)*2)
	for i, e := range schema {
		index[e.Name] = i
		if e.Alias != "" {
			index[e.Alias] = i
		}
	}
	conv := newConverter[T]()
	warned := make(map[string]struct{})

	out := &TypedDataset[T]{
		Schema:    append(Schema(nil), schema...),
		Sequences: make([]TypedSequence[T], 0, ds.Len()),
	}
	for _, seq := range ds.Sequences() {
		ts := TypedSequence[T]{
			ID:      seq.ID,
			Comment: seq.Comment,
			Records: make([]TypedRecord[T], len(schema)),
		}
		for i, e := range schema {
			ts.Records[i] = TypedRecord[T]{Stream: e.Name, Storage: e.Storage, Dimension: e.Dimension}
		}

		for _, s := range seq.Samples {
			i, ok := index[s.Name]
			if !ok {
				metrics.IgnoredSamples.Inc()
				if _, seen := warned[s.Name]; !seen {
					warned[s.Name] = struct{}{}
					if ignored != nil {
						ignored(s.Name)
					}
				}
				continue
			}

			e := schema[i]
			rec := &ts.Records[i]
			switch e.Storage {
			case Sparse:
				for pos, v := range s.Values {
					idx := v.Index
					if !v.HasIndex() {
						idx = int64(pos)
					}
					if idx < 0 {
						return nil, projectionError(KindIndexOutOfRange, seq.ID, e.Name,
							"negative sparse index %d", idx)
					}
					if e.Dimension > 0 && idx >= int64(e.Dimension) {
						return nil, projectionError(KindIndexOutOfRange, seq.ID, e.Name,
							"sparse index %d is outside dimension %d", idx, e.Dimension)
					}
					t, err := conv.convert(v.Value, seq.ID, e.Name)
					if err != nil {
						return nil, err
					}
					rec.Indices = append(rec.Indices, uint64(idx))
					rec.Values = append(rec.Values, t)
				}
			case Dense:
				if len(s.Values) != e.Dimension {
					return nil, projectionError(KindDimensionMismatch, seq.ID, e.Name,
						"dense sample has %d values, expected %d", len(s.Values), e.Dimension)
				}
				for _, v := range s.Values {
					t, err := conv.convert(v.Value, seq.ID, e.Name)
					if err != nil {
						return nil, err
					}
					rec.Values = append(rec.Values, t)
				}
			}
		}
		out.Sequences = append(out.Sequences, ts)
	}
	return out, nil
}

// converter narrows double precision payloads to T. Integer element types
// only accept integral values within range.
type converter[T Number] struct {
	integer bool
	bitSize int
	name    string
}

func newConverter[T Number]() converter[T] {
	var zero T
	c := converter[T]{bitSize: 64, name: typeName(zero)}
	half := 0.5
	if T(half) == 0 {
		c.integer = true
		return c
	}
	// 2^24+1 is the smallest integer float32 cannot hold.
	wide := float64(1<<24 + 1)
	if float64(T(wide)) != wide {
		c.bitSize = 32
	}
	return c
}

func (c converter[T]) convert(f float64, seqID uint64, stream string) (T, error) {
	t := T(f)
	if c.integer && (math.Trunc(f) != f || float64(t) != f) {
		return 0, projectionError(KindMalformedValue, seqID, stream,
			"value %v is not representable as %s", f, c.name)
	}
	return t, nil
}

func typeName(v interface{}) string {
	switch v.(type) {
	case float32:
		return "float32"
	case float64:
		return "float64"
	case int8:
		return "int8"
	case int16:
		return "int16"
	case int32:
		return "int32"
	case int64:
		return "int64"
	default:
		return "number"
	}
}
