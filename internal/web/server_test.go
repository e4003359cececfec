package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/internal/report"
	"github.com/fluxfuzzer/statefuzz/internal/ui"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

type staticFindings []report.Finding

func (f staticFindings) Findings() []report.Finding { return f }

func get(t *testing.T, s *Server, target string, v any) *http.Response {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	if v != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return resp
}

func TestServer_Stats(t *testing.T) {
	stats := ui.NewStats()
	stats.SetPlanned(10)
	stats.OnCase(&types.CaseResult{Index: 3, Path: []string{"describe", "setup"}, Field: "Transport", Status: types.StatusOK})

	s := NewServer(stats, WithTarget("127.0.0.1:554"))
	defer s.Stop()

	var got StatsResponse
	resp := get(t, s, "/api/stats", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !got.Running || got.Target != "127.0.0.1:554" || got.TotalCases != 1 || got.Planned != 10 {
		t.Errorf("Unexpected stats: %+v", got)
	}
	if got.LastPath != "describe -> setup" || got.LastField != "Transport" {
		t.Errorf("Unexpected last case: %+v", got)
	}

	s.SetRunning(false)
	get(t, s, "/api/stats", &got)
	if got.Running {
		t.Error("Expected running=false")
	}
}

func TestServer_Cases(t *testing.T) {
	s := NewServer(nil, WithHistory(3))
	defer s.Stop()

	for i := 1; i <= 5; i++ {
		status := types.StatusOK
		if i%2 == 0 {
			status = types.StatusNoResponse
		}
		s.OnCase(&types.CaseResult{
			Index:    i,
			Path:     []string{"options"},
			Field:    "line",
			Status:   status,
			Request:  []byte("OPTIONS * RTSP/1.0\r\n\r\n"),
			Response: []byte("RTSP/1.0 200 OK\r\n\r\n"),
		})
	}

	var cases []CaseLog
	get(t, s, "/api/cases", &cases)
	if len(cases) != 3 {
		t.Fatalf("Expected 3 kept cases, got %d", len(cases))
	}
	if cases[0].Index != 3 || cases[2].Index != 5 {
		t.Errorf("Expected cases 3..5 oldest first, got %d..%d", cases[0].Index, cases[2].Index)
	}
	if cases[2].StatusCode != 200 || cases[2].RequestLen != 22 {
		t.Errorf("Unexpected case: %+v", cases[2])
	}

	get(t, s, "/api/cases?limit=1", &cases)
	if len(cases) != 1 || cases[0].Index != 5 {
		t.Errorf("limit=1 returned %+v", cases)
	}

	get(t, s, "/api/cases?status=no_response", &cases)
	if len(cases) != 1 || cases[0].Index != 4 {
		t.Errorf("status filter returned %+v", cases)
	}
}

func TestServer_CaseError(t *testing.T) {
	s := NewServer(nil)
	defer s.Stop()

	s.OnCase(&types.CaseResult{Index: 1, Status: types.StatusTransportError, Error: errors.New("connection refused")})

	var cases []CaseLog
	get(t, s, "/api/cases", &cases)
	if len(cases) != 1 || cases[0].Error != "connection refused" || cases[0].Status != "transport_error" {
		t.Errorf("Unexpected cases: %+v", cases)
	}
}

func TestServer_FindingsAndPlan(t *testing.T) {
	s := NewServer(nil, WithFindings(staticFindings{{ID: "f1", Type: report.FindingNoResponse, Severity: report.SeverityLow}}))
	defer s.Stop()

	var findings []report.Finding
	get(t, s, "/api/findings", &findings)
	if len(findings) != 1 || findings[0].ID != "f1" {
		t.Errorf("Unexpected findings: %+v", findings)
	}

	var plan []engine.PlanEntry
	get(t, s, "/api/plan", &plan)
	if len(plan) != 0 {
		t.Errorf("Expected empty plan, got %+v", plan)
	}

	s.SetPlan([]engine.PlanEntry{{Name: "pause", Nodes: []string{"describe", "setup", "play", "pause"}, Cases: 42}})
	get(t, s, "/api/plan", &plan)
	if len(plan) != 1 || plan[0].Cases != 42 {
		t.Errorf("Unexpected plan: %+v", plan)
	}
}

func TestServer_NoFindingSource(t *testing.T) {
	s := NewServer(nil)
	defer s.Stop()

	var findings []report.Finding
	get(t, s, "/api/findings", &findings)
	if findings == nil || len(findings) != 0 {
		t.Errorf("Expected empty list, got %v", findings)
	}
}

func TestServer_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(nil, WithCancel(cancel))
	defer s.Stop()

	resp, err := s.app.Test(httptest.NewRequest(http.MethodPost, "/api/stop", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if ctx.Err() == nil {
		t.Error("Expected run context to be cancelled")
	}

	plain := NewServer(nil)
	defer plain.Stop()
	resp, _ = plain.app.Test(httptest.NewRequest(http.MethodPost, "/api/stop", nil))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(nil)
	defer s.Stop()

	resp := get(t, s, "/metrics", nil)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("Unexpected /metrics response: %d", resp.StatusCode)
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(nil)
	defer s.Stop()

	resp := get(t, s, "/ws", nil)
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
