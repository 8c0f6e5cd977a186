package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestTraceRecordsStatus(t *testing.T) {
	recorder := withRecorder(t)

	err := Trace(context.Background(), "ctf.parse", func(ctx context.Context, span *Span) error {
		span.SetAttribute("ctf.sequences", 3)
		span.SetAttribute("ctf.file", "train.ctf")
		return nil
	})
	require.NoError(t, err)

	failure := errors.New("boom")
	err = Trace(context.Background(), "ctf.project", func(ctx context.Context, span *Span) error {
		return failure
	})
	require.ErrorIs(t, err, failure)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ctf.parse", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	attrs := map[string]interface{}{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(3), attrs["ctf.sequences"])
	assert.Equal(t, "train.ctf", attrs["ctf.file"])

	assert.Equal(t, "ctf.project", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestNestedSpansShareTrace(t *testing.T) {
	recorder := withRecorder(t)

	ctx, parent := StartSpan(context.Background(), "ctf.load")
	_, child := StartSpan(ctx, "ctf.parse")
	child.End(nil)
	parent.End(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestInitTracingStdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.ExporterType = "stdout"
	cfg.Output = &buf

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "ctf.load")
	span.End(nil)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "ctf.load")
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.ExporterType = "jaeger"
	_, err := InitTracing(cfg)
	require.Error(t, err)
}

func TestOperationLoggerAddsTraceIDs(t *testing.T) {
	withRecorder(t)
	core, logs := observer.New(zapcore.DebugLevel)

	ctx, span := StartSpan(context.Background(), "ctf.load")
	ol := NewOperationLogger(ctx, zap.New(core), "load")
	ol.LogStart("loading")
	ol.LogComplete("loaded", zap.Int("sequences", 2))
	ol.LogError("failed", errors.New("bad"))
	span.End(nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		fields := e.ContextMap()
		assert.Equal(t, "load", fields["operation"])
		assert.NotEmpty(t, fields["trace_id"])
		assert.NotEmpty(t, fields["span_id"])
	}
	assert.Equal(t, "complete", entries[1].ContextMap()["phase"])
	assert.Equal(t, "bad", entries[2].ContextMap()["error"])
}
