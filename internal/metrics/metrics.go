// Package metrics is a tiny backend-agnostic facade for pipeline metrics.
//
// The pipeline only calls the package-level helpers; cmd/ picks a Backend
// (Datadog, or none) at startup. The default backend discards everything.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. {"kind": "system_costs"}).
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the pipeline.
const (
	FilesTotal          = "etl_files_total"
	RecordsTotal        = "etl_records_total"
	RowsWrittenTotal    = "etl_rows_written_total"
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the nop
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one pipeline step outcome and its duration.
// status is "ok" when err is nil, "error" otherwise.
func RecordStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}
