package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(RecordsParsed)
	RecordsParsed.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RecordsParsed))

	kind := FormatErrors.WithLabelValues("malformed_value")
	before = testutil.ToFloat64(kind)
	kind.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(kind))
}

func TestTimerObservesStage(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)

	timer := NewTimer("unit")
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), d)
	assert.Equal(t, before+1, testutil.CollectAndCount(StageDuration))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker()
	tracker.Add(1 << 20)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput))

	tracker.Add(0)
	time.Sleep(time.Millisecond)
	assert.Equal(t, 0.0, tracker.GetAndReset())
}

func TestWriteTextfile(t *testing.T) {
	LoadsTotal.WithLabelValues(StatusSuccess).Inc()

	path := filepath.Join(t.TempDir(), "ctf.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ctf_loads_total")
	assert.Contains(t, string(data), `status="success"`)
}
