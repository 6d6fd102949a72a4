// Package metrics is the backend-agnostic instrumentation layer of the grid
// engine.
//
// Engine stages (merge, transform, pivot, filter, groups, totals) and the
// recompute scheduler report through the helpers in this file. The default
// backend is a no-op, so instrumentation is always safe to call; cmd/gridctl
// installs a Pushgateway or Datadog backend from the subpackages when asked.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "grid_step_total"
	StepDuration    = "grid_step_duration_seconds"
	RowsTotal       = "grid_rows_total"
	RecomputesTotal = "grid_recompute_total"
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

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. Call it once at startup, before any computation runs.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep records one execution of an engine stage for grid: a
// success/failure counter plus its duration.
func RecordStep(grid, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"grid":   grid,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows by kind for grid. Typical kinds:
//   - "input"     rows after merge
//   - "displayed" rows handed to the renderer
//   - "filtered"  rows hidden by the active filters
func RecordRows(grid, kind string, n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(n), Labels{
		"grid": grid,
		"kind": kind,
	})
}

// RecordRecompute counts scheduler outcomes: "delivered", "superseded",
// "coalesced" or "failed".
func RecordRecompute(grid, outcome string) {
	backend.IncCounter(RecomputesTotal, 1, Labels{
		"grid":    grid,
		"outcome": outcome,
	})
}
