// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// gridctl is a short-lived process, so instead of exposing a scrape endpoint
// the backend gathers into a private registry and pushes it to a Pushgateway
// on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"gridengine/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter      *prometheus.CounterVec // grid_step_total
	stepDuration     *prometheus.SummaryVec // grid_step_duration_seconds
	rowCounter       *prometheus.CounterVec // grid_rows_total
	recomputeCounter *prometheus.CounterVec // grid_recompute_total
}

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "gridengine"; gatewayURL is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "gridengine"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Engine stage executions, partitioned by grid, step and status.",
			},
			[]string{"grid", "step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDuration,
				Help:       "Engine stage duration in seconds, partitioned by grid, step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"grid", "step", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows seen per grid and kind (input, displayed, filtered).",
			},
			[]string{"grid", "kind"},
		),
		recomputeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RecomputesTotal,
				Help: "Recompute scheduler outcomes per grid.",
			},
			[]string{"grid", "outcome"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":      b.stepCounter,
		"step summary":      b.stepDuration,
		"row counter":       b.rowCounter,
		"recompute counter": b.recomputeCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["grid"], labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["grid"], labels["kind"]).Add(delta)
		}
	case metrics.RecomputesTotal:
		if b.recomputeCounter != nil {
			b.recomputeCounter.WithLabelValues(labels["grid"], labels["outcome"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["grid"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
