package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

func TestRecorder_OnCase(t *testing.T) {
	r := NewRecorder()
	path := []string{"metrics_setup", "metrics_play"}

	before := testutil.ToFloat64(testCases.WithLabelValues("metrics_setup.metrics_play", "ok"))
	errorsBefore := testutil.ToFloat64(transportErrors)

	r.OnCase(&types.CaseResult{Path: path, Status: types.StatusOK, Duration: time.Millisecond})
	r.OnCase(&types.CaseResult{Path: path, Status: types.StatusOK})
	r.OnCase(&types.CaseResult{Path: path, Status: types.StatusTransportError, Error: errors.New("refused")})

	if got := testutil.ToFloat64(testCases.WithLabelValues("metrics_setup.metrics_play", "ok")) - before; got != 2 {
		t.Errorf("Expected 2 ok cases, got %v", got)
	}
	if got := testutil.ToFloat64(transportErrors) - errorsBefore; got != 1 {
		t.Errorf("Expected 1 transport error, got %v", got)
	}
}

func TestRecorder_OnCallback(t *testing.T) {
	r := NewRecorder()
	edges := testutil.ToFloat64(edgeCallbacks)
	captures := testutil.ToFloat64(tokenCaptures)

	r.OnCallback(true)
	r.OnCallback(false)

	if got := testutil.ToFloat64(edgeCallbacks) - edges; got != 2 {
		t.Errorf("Expected 2 callbacks, got %v", got)
	}
	if got := testutil.ToFloat64(tokenCaptures) - captures; got != 1 {
		t.Errorf("Expected 1 capture, got %v", got)
	}
}

func TestPathLabel(t *testing.T) {
	if got := PathLabel([]string{"setup", "play", "pause"}); got != "setup.play.pause" {
		t.Errorf("Unexpected label %q", got)
	}
}
