// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the export pipeline and the sequence generator.
//
// A global, pluggable backend defaults to a no-op implementation, so metrics
// are always safe to call even when no real backend is configured. Concrete
// systems (Prometheus Pushgateway, Datadog) live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "imisexport_step_total"
	StepDuration    = "imisexport_step_duration_seconds"
	RowsTotal       = "imisexport_rows_total"
	PagesTotal      = "imisexport_pages_total"
	SequenceTotal   = "imisexport_sequence_total"
	defaultStatusOK = "success"
)

// Row kinds recorded by RecordRows.
const (
	RowsExtracted = "extracted"
	RowsSkipped   = "skipped"
	RowsPublished = "published"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return defaultStatusOK
}

// RecordStep measures one pipeline step (resolve, extract, publish) of a
// dataset.
func RecordStep(dataset, step string, err error, d time.Duration) {
	lbls := Labels{
		"dataset": dataset,
		"step":    step,
		"status":  status(err),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows of the given kind for a dataset.
func RecordRows(dataset, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"dataset": dataset,
		"kind":    kind,
	})
}

// RecordPages counts source pages read for a dataset.
func RecordPages(dataset string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(PagesTotal, float64(delta), Labels{"dataset": dataset})
}

// RecordSequence counts one sequence allocation attempt.
func RecordSequence(field string, err error) {
	current().IncCounter(SequenceTotal, 1, Labels{
		"field":  field,
		"status": status(err),
	})
}
