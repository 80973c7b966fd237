// Package telemetry defines the observability sink the engine reports to:
// dependency records for each timed external call, gauges for queue depth and
// pool occupancy, and counters for failures, retries, and cache lookups.
package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"docbatch/internal/logging"
)

// Dependency describes one timed call to an external collaborator.
type Dependency struct {
	JobType       string
	CorrelationID string
	Duration      time.Duration
	Success       bool
	Detail        string
}

// Sink receives engine telemetry. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordDependency(ctx context.Context, dep Dependency)
	Gauge(name string, value float64)
	Count(name string, delta int64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordDependency(context.Context, Dependency) {}

func (Nop) Gauge(string, float64) {}

func (Nop) Count(string, int64) {}

// OrNop returns sink, or Nop when sink is nil.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return Nop{}
	}
	return sink
}

// LogSink writes dependency records to a logger at debug level and keeps
// gauges and counters in memory for the status endpoint.
type LogSink struct {
	logger *slog.Logger
	mem    *Recorder
}

// NewLogSink builds a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{
		logger: logging.NewComponentLogger(logger, "telemetry"),
		mem:    NewRecorder(),
	}
}

func (s *LogSink) RecordDependency(ctx context.Context, dep Dependency) {
	s.mem.RecordDependency(ctx, dep)
	logging.WithContext(ctx, s.logger).Debug("dependency call",
		logging.String("job_type", dep.JobType),
		logging.String(logging.FieldCorrelationID, dep.CorrelationID),
		logging.Duration("duration", dep.Duration),
		logging.Bool("success", dep.Success),
		logging.String("detail", dep.Detail),
	)
}

func (s *LogSink) Gauge(name string, value float64) { s.mem.Gauge(name, value) }

func (s *LogSink) Count(name string, delta int64) { s.mem.Count(name, delta) }

// Snapshot returns the current gauges and counters.
func (s *LogSink) Snapshot() Snapshot { return s.mem.Snapshot() }

// Recorder keeps telemetry in memory. Tests use it to assert on what the
// engine reported.
type Recorder struct {
	mu           sync.Mutex
	dependencies []Dependency
	gauges       map[string]float64
	counters     map[string]int64
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{gauges: make(map[string]float64), counters: make(map[string]int64)}
}

func (r *Recorder) RecordDependency(_ context.Context, dep Dependency) {
	r.mu.Lock()
	r.dependencies = append(r.dependencies, dep)
	r.mu.Unlock()
}

func (r *Recorder) Gauge(name string, value float64) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

func (r *Recorder) Count(name string, delta int64) {
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()
}

// Dependencies returns a copy of recorded dependency calls.
func (r *Recorder) Dependencies() []Dependency {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Dependency(nil), r.dependencies...)
}

// Counter returns the current value of a counter.
func (r *Recorder) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// GaugeValue returns the last value set for a gauge.
func (r *Recorder) GaugeValue(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[name]
	return v, ok
}

// Snapshot is a point-in-time copy of gauges and counters.
type Snapshot struct {
	Gauges   map[string]float64
	Counters map[string]int64
}

// Names returns the sorted counter names.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current gauges and counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Gauges:   make(map[string]float64, len(r.gauges)),
		Counters: make(map[string]int64, len(r.counters)),
	}
	for k, v := range r.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	return snap
}

// Metric names shared by the cache, pool, and workflow manager.
const (
	GaugeQueueDepth   = "queue_depth"
	GaugePoolActive   = "pool_active"
	GaugePoolQueued   = "pool_queued"
	CounterCacheHit   = "cache_hit"
	CounterCacheMiss  = "cache_miss"
	failurePrefix     = "failures."
	retryPrefix       = "retries.attempt_"
	JobTypeConversion = "conversion"
	JobTypeWorkItem   = "work_item"
	JobTypeTemplate   = "template_fetch"
)

// FailureCounter names the counter for failures of a given reason.
func FailureCounter(reason string) string { return failurePrefix + reason }

// RetryCounter names the counter for retries scheduled after the given attempt.
func RetryCounter(attempt int) string { return retryPrefix + strconv.Itoa(attempt) }
