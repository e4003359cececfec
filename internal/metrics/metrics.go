// Package metrics exposes Prometheus counters for fuzzing runs.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

var (
	// testCases counts executed test cases.
	// Labels: path (node names joined by "."), status (ok, no_response, transport_error, protocol_error)
	testCases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statefuzz",
		Name:      "test_cases_total",
		Help:      "Total executed test cases",
	}, []string{"path", "status"})

	// caseDuration measures the wall time of a whole test case, prefix included.
	caseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "statefuzz",
		Name:      "test_case_duration_seconds",
		Help:      "Test case duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"path"})

	edgeCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statefuzz",
		Name:      "edge_callbacks_total",
		Help:      "Total state update callbacks run on edges",
	})

	tokenCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statefuzz",
		Name:      "session_token_captures_total",
		Help:      "Total session tokens captured from responses",
	})

	transportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statefuzz",
		Name:      "transport_errors_total",
		Help:      "Total test cases that failed on connect, send or receive",
	})
)

// Recorder feeds test case results and callback outcomes into the counters
type Recorder struct{}

// NewRecorder creates a Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnCase records one executed test case
func (r *Recorder) OnCase(res *types.CaseResult) {
	path := PathLabel(res.Path)
	testCases.WithLabelValues(path, string(res.Status)).Inc()
	caseDuration.WithLabelValues(path).Observe(res.Duration.Seconds())
	if res.Status == types.StatusTransportError {
		transportErrors.Inc()
	}
}

// OnCallback records one update callback and whether it captured a token
func (r *Recorder) OnCallback(captured bool) {
	edgeCallbacks.Inc()
	if captured {
		tokenCaptures.Inc()
	}
}

// PathLabel joins node names into a label value
func PathLabel(nodes []string) string {
	return strings.Join(nodes, ".")
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
