package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"gridengine/internal/metrics"
)

// readCounterValue reads the current value of a Counter.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	s := m.GetSummary()
	if s == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	return s.GetSampleCount(), s.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "grid", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "gridengine"},
		{name: "explicit job name is preserved", jobName: "nightly-pivots", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly-pivots"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.rowCounter == nil || b.recomputeCounter == nil {
				t.Fatalf("collectors not initialised: %#v", b)
			}
		})
	}
}

/*
TestIncCounter verifies that IncCounter routes each metric name to its
collector with the expected label order, and ignores unknown names.
*/
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("grid", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"grid": "sales", "step": "pivot", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"grid": "sales", "kind": "displayed"})
	b.IncCounter(metrics.RowsTotal, 0.5, metrics.Labels{"grid": "sales", "kind": "displayed"})
	b.IncCounter(metrics.RecomputesTotal, 1, metrics.Labels{"grid": "sales", "outcome": "superseded"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"grid": "sales"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("sales", "pivot", "success")); got != 3 {
		t.Fatalf("stepCounter = %v, want 3", got)
	}
	if got := readCounterValue(t, b.rowCounter.WithLabelValues("sales", "displayed")); got != 5.5 {
		t.Fatalf("rowCounter = %v, want 5.5", got)
	}
	if got := readCounterValue(t, b.recomputeCounter.WithLabelValues("sales", "superseded")); got != 1 {
		t.Fatalf("recomputeCounter = %v, want 1", got)
	}
	if got := readCounterValue(t, b.stepCounter.WithLabelValues("sales", "merge", "success")); got != 0 {
		t.Fatalf("untouched stepCounter = %v, want 0", got)
	}
}

func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "input"})
	b.IncCounter(metrics.RecomputesTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		metricName string
		wantCount  uint64
		wantSum    float64
	}{
		{"records step duration", metrics.StepDuration, 1, 1.5},
		{"ignores other names", "other_metric", 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend("grid", "http://example.com")
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			b.ObserveHistogram(tt.metricName, 1.5, metrics.Labels{"grid": "g", "step": "totals", "status": "success"})

			count, sum := readSummaryCountSum(t, b.stepDuration, "g", "totals", "success")
			if count != tt.wantCount || sum != tt.wantSum {
				t.Fatalf("summary = (%d, %v), want (%d, %v)", count, sum, tt.wantCount, tt.wantSum)
			}
		})
	}
}

// TestFlush verifies that Flush pushes the registry to the gateway.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method  string
		path    string
		bodyLen int
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("grid-job", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"grid": "g", "step": "merge", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not reach the Pushgateway")
	}
	if got.method == "" || got.path == "" || got.bodyLen == 0 {
		t.Fatalf("push request = %#v", got)
	}
}

func BenchmarkIncCounterStep(b *testing.B) {
	backend, err := NewBackend("grid", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"grid": "g", "step": "pivot", "status": "success"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.StepTotal, 1, labels)
	}
}
