package ctf

import (
	"os"
	"runtime"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/metrics"
	"github.com/ajitpratap0/ctfkit/pkg/testutil"
)

const loadInput = "0 |features 1 2 |labels 1:1\n" +
	"0 |features 3 4\n" +
	"1 |features 5 6 |labels 0:1 |#second\n"

type LoadTestSuite struct {
	testutil.Suite
	recorder *tracetest.SpanRecorder
	provider *sdktrace.TracerProvider
	previous trace.TracerProvider
	schema   Schema
	cfg      Config
}

func TestLoadTestSuite(t *testing.T) {
	suite.Run(t, new(LoadTestSuite))
}

func (s *LoadTestSuite) SetupTest() {
	s.recorder = tracetest.NewSpanRecorder()
	s.previous = otel.GetTracerProvider()
	s.provider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))
	otel.SetTracerProvider(s.provider)

	s.schema = Schema{
		{Name: "features", Dimension: 2, Kind: Feature, Storage: Dense},
		{Name: "labels", Dimension: 2, Kind: Label, Storage: Sparse},
	}
	s.cfg = Config{WindowSize: 5, Logger: testutil.TestLogger(s.T())}
}

func (s *LoadTestSuite) TearDownTest() {
	otel.SetTracerProvider(s.previous)
	s.Require().NoError(s.provider.Shutdown(s.Context()))
}

func (s *LoadTestSuite) spanNames() []string {
	var names []string
	for _, span := range s.recorder.Ended() {
		names = append(names, span.Name())
	}
	return names
}

func (s *LoadTestSuite) TestLoadFile() {
	path := s.WriteCTF("train.ctf", loadInput)

	typed, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	s.Require().NoError(err)
	s.Require().Equal(2, typed.Len())

	first := typed.Sequences[0]
	s.Equal([][]float32{{1, 2}, {3, 4}}, first.Records[0].Rows())
	s.Equal([]uint64{1}, first.Records[1].Indices)
	s.Equal("second", typed.Sequences[1].Comment)
	s.Equal(s.schema, typed.Schema)

	s.Equal([]string{"ctf.parse", "ctf.project", "ctf.load"}, s.spanNames())
	for _, span := range s.recorder.Ended() {
		s.Equal(codes.Ok, span.Status().Code, span.Name())
	}
}

func (s *LoadTestSuite) TestLoadCompressedFileMatchesPlain() {
	plain := s.WriteCTF("train.ctf", loadInput)
	want, err := Load[float64](s.Context(), plain, s.schema, s.cfg)
	s.Require().NoError(err)

	for _, algo := range []compression.Algorithm{compression.Gzip, compression.Zstd, compression.LZ4} {
		path := testutil.WriteCompressedCTF(s.T(), "train.ctf"+compression.Extension(algo), algo, loadInput)
		got, err := Load[float64](s.Context(), path, s.schema, s.cfg)
		s.Require().NoError(err, string(algo))
		s.Equal(want, got, string(algo))
	}
}

func (s *LoadTestSuite) TestLoadMmapMatchesPlain() {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		s.T().Skip("mmap not supported on " + runtime.GOOS)
	}
	plain := s.WriteCTF("train.ctf", loadInput)
	want, err := Load[float32](s.Context(), plain, s.schema, s.cfg)
	s.Require().NoError(err)

	mapped := s.cfg
	mapped.Mmap = true
	got, err := Load[float32](s.Context(), plain, s.schema, mapped)
	s.Require().NoError(err)
	s.Equal(want, got)

	zst := testutil.WriteCompressedCTF(s.T(), "train.ctf.zst", compression.Zstd, loadInput)
	got, err = Load[float32](s.Context(), zst, s.schema, mapped)
	s.Require().NoError(err)
	s.Equal(want, got)

	_, err = Load[float32](s.Context(), s.Path("missing.ctf"), s.schema, mapped)
	s.True(IsIOError(err))
}

func (s *LoadTestSuite) TestParseMatchesLoad() {
	path := s.WriteCTF("train.ctf", loadInput)

	ds, err := Parse(s.Context(), path, s.cfg)
	s.Require().NoError(err)
	s.Equal([]uint64{0, 1}, ds.IDs())
	s.Equal(int64(len(loadInput)), ds.Stats().Bytes)

	typed, err := Project[float32](s.Context(), ds, s.schema)
	s.Require().NoError(err)
	loaded, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	s.Require().NoError(err)
	s.Equal(loaded, typed)
}

func (s *LoadTestSuite) TestLoadMissingFile() {
	_, err := Load[float32](s.Context(), s.Path("missing.ctf"), s.schema, s.cfg)
	s.Require().Error(err)
	s.True(IsIOError(err))
	s.False(IsFormatError(err))
}

func (s *LoadTestSuite) TestLoadRejectsInvalidSchemaBeforeReading() {
	before := promtest.ToFloat64(metrics.LoadsTotal.WithLabelValues(metrics.StatusFailure))

	_, err := Load[float32](s.Context(), s.Path("never-opened.ctf"), Schema{}, s.cfg)
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeConfig))
	s.Empty(s.spanNames())

	after := promtest.ToFloat64(metrics.LoadsTotal.WithLabelValues(metrics.StatusFailure))
	s.Equal(before+1, after)
}

func (s *LoadTestSuite) TestLoadCountsOutcomes() {
	path := s.WriteCTF("train.ctf", loadInput)
	success := metrics.LoadsTotal.WithLabelValues(metrics.StatusSuccess)
	sequences := promtest.ToFloat64(metrics.SequencesLoaded)
	before := promtest.ToFloat64(success)

	_, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	s.Require().NoError(err)

	s.Equal(before+1, promtest.ToFloat64(success))
	s.Equal(sequences+2, promtest.ToFloat64(metrics.SequencesLoaded))
}

func (s *LoadTestSuite) TestLoadFormatErrorIsCountedAndTraced() {
	path := s.WriteCTF("broken.ctf", loadInput+"2 |features 1.2.3\n")
	counter := metrics.FormatErrors.WithLabelValues(string(KindMalformedValue))
	before := promtest.ToFloat64(counter)

	typed, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	s.Nil(typed)
	requireKind(s.T(), err, KindMalformedValue)
	pos, ok := PositionOf(err)
	s.Require().True(ok)
	s.Equal(4, pos.Line)

	s.Equal(before+1, promtest.ToFloat64(counter))
	s.Equal([]string{"ctf.parse", "ctf.load"}, s.spanNames())
	for _, span := range s.recorder.Ended() {
		s.Equal(codes.Error, span.Status().Code, span.Name())
	}
}

func (s *LoadTestSuite) TestLoadProjectionErrorIsCounted() {
	path := s.WriteCTF("ragged.ctf", "0 |features 1 2 3\n")
	counter := metrics.FormatErrors.WithLabelValues(string(KindDimensionMismatch))
	before := promtest.ToFloat64(counter)

	_, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	requireKind(s.T(), err, KindDimensionMismatch)
	s.Equal(before+1, promtest.ToFloat64(counter))
}

func (s *LoadTestSuite) TestLoadCountsIgnoredStreams() {
	path := s.WriteCTF("extra.ctf", "0 |features 1 2 |extra 1\n1 |extra 2\n")
	before := promtest.ToFloat64(metrics.IgnoredSamples)

	_, err := Load[float32](s.Context(), path, s.schema, s.cfg)
	s.Require().NoError(err)
	s.Equal(before+2, promtest.ToFloat64(metrics.IgnoredSamples))

	var events []string
	for _, span := range s.recorder.Ended() {
		if span.Name() != "ctf.project" {
			continue
		}
		for _, ev := range span.Events() {
			events = append(events, ev.Name)
		}
	}
	s.Equal([]string{"ctf.stream_ignored"}, events)
}

func (s *LoadTestSuite) TestLoadDirectoryIsIOError() {
	dir := s.Path("dir.ctf")
	s.Require().NoError(os.MkdirAll(dir, 0o755))

	_, err := Parse(s.Context(), dir, s.cfg)
	s.Require().Error(err)
	s.True(IsIOError(err))
}
