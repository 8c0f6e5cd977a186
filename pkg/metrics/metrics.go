// Package metrics provides Prometheus instrumentation for CTF loads. All
// collectors live on a package Registry rather than the global default one,
// so embedding programs decide whether and how to expose them.
//
// # Overview
//
// The metrics package provides:
//   - Counters for bytes, records, samples, values, comments and sequences
//   - Load outcomes by status and format errors by kind
//   - A stage duration histogram (parse, project, export)
//   - Throughput tracking in bytes per second
//   - A textfile dump for node_exporter style collection
//
// # Basic Usage
//
//	timer := metrics.NewTimer(metrics.StageParse)
//	ds, err := ctf.Parse(ctx, path, cfg)
//	timer.ObserveDuration()
//
//	metrics.LoadsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
//	_ = metrics.WriteTextfile("/var/lib/node_exporter/ctfload.prom")
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stages observed by StageDuration.
const (
	StageParse   = "parse"
	StageProject = "project"
	StageExport  = "export"
)

// Load statuses used by LoadsTotal.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Registry holds every collector of this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// BytesRead counts decoded input bytes pulled through cursor windows.
	BytesRead = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_bytes_read_total",
		Help: "Total number of decoded CTF bytes read",
	})

	// RecordsParsed counts physical records (lines carrying data).
	RecordsParsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_records_parsed_total",
		Help: "Total number of CTF records parsed",
	})

	// SamplesParsed counts stream samples.
	SamplesParsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_samples_parsed_total",
		Help: "Total number of CTF samples parsed",
	})

	// ValuesParsed counts numeric tokens.
	ValuesParsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_values_parsed_total",
		Help: "Total number of CTF values parsed",
	})

	// CommentsParsed counts comments, including empty ones.
	CommentsParsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_comments_parsed_total",
		Help: "Total number of CTF comments parsed",
	})

	// SequencesLoaded counts sequences of successful parses.
	SequencesLoaded = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_sequences_loaded_total",
		Help: "Total number of sequences in successfully parsed datasets",
	})

	// LoadsTotal counts finished loads.
	// Labels: status (success/failure)
	LoadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_loads_total",
			Help: "Total number of CTF loads by outcome",
		},
		[]string{"status"},
	)

	// FormatErrors counts fatal format errors.
	// Labels: kind (malformed_value, dimension_mismatch, ...)
	FormatErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_format_errors_total",
			Help: "Total number of fatal CTF format errors by kind",
		},
		[]string{"kind"},
	)

	// IgnoredSamples counts samples whose stream is not in the schema.
	IgnoredSamples = factory.NewCounter(prometheus.CounterOpts{
		Name: "ctf_ignored_samples_total",
		Help: "Total number of samples dropped because their stream is not in the schema",
	})

	// ExportedSequences counts sequences written by exporters.
	// Labels: format (jsonl/avro/arrow/ctf)
	ExportedSequences = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_exported_sequences_total",
			Help: "Total number of sequences written by exporters",
		},
		[]string{"format"},
	)

	// StageDuration tracks how long each load stage takes.
	// Labels: stage (parse/project/export)
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ctf_stage_duration_seconds",
			Help: "Duration of CTF load stages in seconds",
			Buckets: []float64{
				0.001, // 1ms - small fixtures
				0.01,  // 10ms
				0.1,   // 100ms
				1,     // 1s - typical training files
				10,    // 10s
				60,    // 1m - multi-gigabyte corpora
			},
		},
		[]string{"stage"},
	)

	// Throughput is the read rate of the last completed parse.
	Throughput = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ctf_throughput_bytes_per_second",
		Help: "Decoded bytes per second of the last parse",
	})
)

// Timer measures one stage and reports it to StageDuration.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer starts timing stage immediately.
//
// Example:
//
//	timer := metrics.NewTimer(metrics.StageProject)
//	typed, err := ctf.Project[float32](ctx, ds, schema)
//	elapsed := timer.ObserveDuration()
func NewTimer(stage string) *Timer {
	return &Timer{
		start: time.Now(),
		stage: stage,
	}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in StageDuration and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	StageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}

// ThroughputTracker accumulates bytes and publishes the rate to Throughput.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	bytes     int64
	lastReset time.Time
}

// NewThroughputTracker starts a tracker at the current time.
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now()}
}

// Add accounts n more bytes.
func (t *ThroughputTracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytes += n
}

// GetAndReset computes bytes per second since the last reset, publishes it
// and starts a new period.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	rate := float64(t.bytes) / elapsed

	t.bytes = 0
	t.lastReset = time.Now()

	Throughput.Set(rate)
	return rate
}

// WriteTextfile writes the current state of Registry to path in the text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
