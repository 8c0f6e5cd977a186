package ctf

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/metrics"
	"github.com/ajitpratap0/ctfkit/pkg/observability"
	"github.com/ajitpratap0/ctfkit/pkg/pool"
)

// Config tunes a load. The zero value is usable.
type Config struct {
	// WindowSize is the cursor window in bytes; 0 selects DefaultWindowSize.
	WindowSize int
	// Compression selects the input decoder; empty or Auto detects it from
	// the file extension.
	Compression compression.Algorithm
	// Mmap reads files through a memory mapping.
	Mmap bool
	// Logger receives load logs; nil selects the global logger.
	Logger *zap.Logger
}

func (c Config) cursorOptions() CursorOptions {
	return CursorOptions{WindowSize: c.WindowSize, Compression: c.Compression, Mmap: c.Mmap}
}

func (c Config) logger(ctx context.Context) *zap.Logger {
	base := c.Logger
	if base == nil {
		base = logger.Get()
	}
	return logger.FromContext(ctx, base)
}

// withLoadID tags ctx with a fresh load id unless it already carries one.
func withLoadID(ctx context.Context, file string) context.Context {
	if _, ok := ctx.Value(logger.LoadIDKey).(string); ok {
		return ctx
	}
	return logger.ContextWithLoad(ctx, uuid.NewString(), file)
}

// Parse reads the CTF file at path into an untyped dataset. Either the whole
// file parses or an error is returned and no dataset survives.
func Parse(ctx context.Context, path string, cfg Config) (*Dataset, error) {
	ctx = withLoadID(ctx, path)
	ds, err := parseFile(ctx, path, cfg)
	countLoad(err)
	return ds, err
}

// ParseReader is Parse over an already open stream.
func ParseReader(ctx context.Context, r io.Reader, cfg Config) (*Dataset, error) {
	ctx = withLoadID(ctx, "")
	ds, err := parseStream(ctx, r, cfg)
	countLoad(err)
	return ds, err
}

// Load parses the CTF file at path and projects it through schema with T as
// the element type.
func Load[T Number](ctx context.Context, path string, schema Schema, cfg Config) (*TypedDataset[T], error) {
	ctx = withLoadID(ctx, path)
	typed, err := load[T](ctx, schema, cfg, func(ctx context.Context) (*Dataset, error) {
		return parseFile(ctx, path, cfg)
	})
	countLoad(err)
	return typed, err
}

// LoadReader is Load over an already open stream.
func LoadReader[T Number](ctx context.Context, r io.Reader, schema Schema, cfg Config) (*TypedDataset[T], error) {
	ctx = withLoadID(ctx, "")
	typed, err := load[T](ctx, schema, cfg, func(ctx context.Context) (*Dataset, error) {
		return parseStream(ctx, r, cfg)
	})
	countLoad(err)
	return typed, err
}

func load[T Number](ctx context.Context, schema Schema, cfg Config, parseFn func(context.Context) (*Dataset, error)) (*TypedDataset[T], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "ctf.load")
	log := observability.NewOperationLogger(ctx, cfg.logger(ctx), "load")

	ds, err := parseFn(ctx)
	if err != nil {
		span.End(err)
		return nil, err
	}

	typed, err := projectTraced[T](ctx, ds, schema, log)
	if err != nil {
		log.LogError("CTF projection failed", err)
		span.End(err)
		return nil, err
	}

	span.SetAttribute("ctf.sequences", typed.Len())
	span.End(nil)
	log.LogComplete("CTF dataset loaded",
		zap.Int("sequences", typed.Len()),
		zap.Int("streams", len(schema)),
	)
	return typed, nil
}

func parseFile(ctx context.Context, path string, cfg Config) (ds *Dataset, err error) {
	cur, err := Open(path, cfg.cursorOptions())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			ds, err = nil, cerr
		}
	}()
	return parseCursor(ctx, cur, cfg)
}

func parseStream(ctx context.Context, r io.Reader, cfg Config) (ds *Dataset, err error) {
	cur, err := NewCursor(r, -1, cfg.cursorOptions())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			ds, err = nil, cerr
		}
	}()
	return parseCursor(ctx, cur, cfg)
}

func parseCursor(ctx context.Context, cur *Cursor, cfg Config) (*Dataset, error) {
	var out *Dataset
	err := observability.Trace(ctx, "ctf.parse", func(ctx context.Context, span *observability.Span) error {
		log := observability.NewOperationLogger(ctx, cfg.logger(ctx), "parse")
		timer := metrics.NewTimer(metrics.StageParse)
		tracker := metrics.NewThroughputTracker()

		log.LogStart("parsing CTF input",
			zap.String("path", cur.Path()),
			zap.Int64("size", cur.Size()),
		)

		a := newAssembler(cur)
		ds, err := a.run()
		timer.ObserveDuration()
		metrics.BytesRead.Add(float64(cur.BytesRead()))
		tracker.Add(cur.BytesRead())
		span.SetAttribute("ctf.bytes", cur.BytesRead())

		if err != nil {
			countFormatError(err)
			if pos, ok := PositionOf(err); ok {
				span.SetAttribute("ctf.error.line", pos.Line)
			}
			log.LogError("CTF parse failed", err)
			return err
		}

		stats := ds.stats
		metrics.RecordsParsed.Add(float64(stats.Records))
		metrics.SamplesParsed.Add(float64(stats.Samples))
		metrics.ValuesParsed.Add(float64(stats.Values))
		metrics.CommentsParsed.Add(float64(stats.Comments))
		metrics.SequencesLoaded.Add(float64(stats.Sequences))
		rate := tracker.GetAndReset()
		_, _, scratchHits, scratchMisses := pool.ScratchStats()

		span.SetAttribute("ctf.records", stats.Records)
		span.SetAttribute("ctf.sequences", stats.Sequences)
		log.LogComplete("CTF input parsed",
			zap.Int64("records", stats.Records),
			zap.Int64("samples", stats.Samples),
			zap.Int64("comments", stats.Comments),
			zap.Int64("sequences", stats.Sequences),
			zap.Int64("bytes", stats.Bytes),
			zap.Float64("bytes_per_second", rate),
			zap.Int64("scratch_pool_hits", scratchHits),
			zap.Int64("scratch_pool_misses", scratchMisses),
		)
		out = ds
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func countLoad(err error) {
	if err != nil {
		metrics.LoadsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return
	}
	metrics.LoadsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
}

func countFormatError(err error) {
	if kind, ok := FormatKindOf(err); ok {
		metrics.FormatErrors.WithLabelValues(string(kind)).Inc()
	}
}
