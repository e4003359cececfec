package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluxfuzzer/statefuzz/internal/analyzer"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
	"github.com/google/uuid"
)

func TestNewReport(t *testing.T) {
	r := NewReport("Test Report", "tcp://127.0.0.1:554")

	if r.Title != "Test Report" {
		t.Errorf("Expected title 'Test Report', got '%s'", r.Title)
	}
	if r.Target != "tcp://127.0.0.1:554" {
		t.Errorf("Expected target 'tcp://127.0.0.1:554', got '%s'", r.Target)
	}
	if _, err := uuid.Parse(r.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", r.RunID, err)
	}
	if r.Version != "1.0" {
		t.Errorf("Expected version '1.0', got '%s'", r.Version)
	}
}

func TestReport_AddFinding(t *testing.T) {
	r := NewReport("Test", "target")

	r.AddFinding(Finding{Type: FindingTransportError, Severity: SeverityHigh, Index: 3})
	r.AddFinding(Finding{ID: "fixed", Type: FindingNoResponse, Severity: SeverityLow, Index: 4})

	if len(r.Findings) != 2 {
		t.Fatalf("Expected 2 findings, got %d", len(r.Findings))
	}
	if _, err := uuid.Parse(r.Findings[0].ID); err != nil {
		t.Errorf("Expected generated ID, got %q", r.Findings[0].ID)
	}
	if r.Findings[1].ID != "fixed" {
		t.Errorf("Expected ID to be kept, got %q", r.Findings[1].ID)
	}
	if r.SeverityCounts[SeverityHigh] != 1 || r.TypeCounts[FindingNoResponse] != 1 {
		t.Errorf("Unexpected counts: %v %v", r.SeverityCounts, r.TypeCounts)
	}
	low := r.Filter(func(f Finding) bool { return f.Severity == SeverityLow })
	if len(low) != 1 || low[0].Type != FindingNoResponse {
		t.Errorf("Filter returned wrong findings: %+v", low)
	}
}

func TestJSONGenerator(t *testing.T) {
	r := createTestReport(3)
	r.SetStatistics(Statistics{TotalCases: 10, Duration: 2 * time.Second})

	var buf bytes.Buffer
	if err := (&JSONGenerator{Indent: true}).Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	stats := decoded["statistics"].(map[string]any)
	if stats["duration"] != "2s" {
		t.Errorf("Expected duration '2s', got %v", stats["duration"])
	}
	if stats["findings_found"].(float64) != 3 {
		t.Errorf("Expected 3 findings, got %v", stats["findings_found"])
	}
	// Raw protocol text must survive unescaped.
	if !strings.Contains(buf.String(), "<root>") {
		t.Error("Expected HTML characters to be left unescaped")
	}
}

func TestMarkdownGenerator(t *testing.T) {
	r := createTestReport(2)
	r.Protocol = "rtsp"
	r.Paths = []string{"pause"}

	var buf bytes.Buffer
	if err := (&MarkdownGenerator{IncludeDetails: true}).Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"# Test Report", "## Summary", "## Findings", "High", "PAUSE rtsp://", "**Paths:** pause"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in Markdown output", want)
		}
	}
}

func TestMarkdownGenerator_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownGenerator{}).Generate(NewReport("Clean", "target"), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No findings.") {
		t.Error("Expected 'No findings.'")
	}
}

func TestManager_Generate(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	if got := strings.Join(m.Formats(), ","); got != "json,markdown,md" {
		t.Errorf("Formats() = %s", got)
	}

	path, err := m.Generate(createTestReport(1), "json")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".json" {
		t.Errorf("Unexpected path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Report file missing: %v", err)
	}

	if _, err := m.Generate(createTestReport(1), "pdf"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestManager_Write(t *testing.T) {
	var buf bytes.Buffer
	if err := NewManager(t.TempDir()).Write(createTestReport(1), "md", &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected output")
	}
}

func TestCollector_StatusFindings(t *testing.T) {
	c := NewCollector(NewReport("run", "target"))

	c.OnCase(&types.CaseResult{Index: 1, Path: []string{"options"}, Status: types.StatusOK, Response: []byte("RTSP/1.0 200 OK\r\n\r\n"), Duration: time.Millisecond})
	c.OnCase(&types.CaseResult{Index: 2, Path: []string{"options"}, Status: types.StatusNoResponse, Duration: 3 * time.Millisecond})
	c.OnCase(&types.CaseResult{Index: 3, Path: []string{"describe", "setup"}, Status: types.StatusTransportError, Error: errors.New("connection refused")})
	c.OnCase(&types.CaseResult{Index: 4, Path: []string{"options"}, Status: types.StatusProtocolError, Response: []byte("RTSP/1.0 500 Internal Server Error\r\n\r\n")})

	r := c.Report()
	if r.Statistics.TotalCases != 4 || r.Statistics.OKCount != 1 || r.Statistics.NoResponseCount != 1 {
		t.Errorf("Unexpected statistics: %+v", r.Statistics)
	}
	if r.Statistics.MaxCaseTime != 3*time.Millisecond {
		t.Errorf("MaxCaseTime = %s", r.Statistics.MaxCaseTime)
	}
	if len(r.Findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(r.Findings))
	}

	tests := []struct {
		typ      FindingType
		severity Severity
	}{
		{FindingNoResponse, SeverityLow},
		{FindingTransportError, SeverityHigh},
		{FindingProtocolError, SeverityMedium},
	}
	for i, tt := range tests {
		f := r.Findings[i]
		if f.Type != tt.typ || f.Severity != tt.severity {
			t.Errorf("finding %d = %s/%s, want %s/%s", i, f.Type, f.Severity, tt.typ, tt.severity)
		}
	}

	if r.Findings[1].Path != "describe -> setup" || r.Findings[1].Details.Error != "connection refused" {
		t.Errorf("Unexpected transport finding: %+v", r.Findings[1])
	}
	if r.Findings[2].StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", r.Findings[2].StatusCode)
	}
}

func TestCollector_Deviation(t *testing.T) {
	a := analyzer.New(&analyzer.Config{MinSamples: 2, LengthMultiplier: 100, DistanceThreshold: 1000})
	c := NewCollector(NewReport("run", "target"), WithAnalyzer(a), WithExcerpt(8))

	ok := []byte("RTSP/1.0 200 OK\r\nCSeq: 2\r\n\r\n")
	for i := 1; i <= 3; i++ {
		c.OnCase(&types.CaseResult{Index: i, Path: []string{"pause"}, Status: types.StatusOK, Response: ok})
	}
	if n := len(c.Findings()); n != 0 {
		t.Fatalf("Expected no findings, got %d", n)
	}

	c.OnCase(&types.CaseResult{Index: 4, Path: []string{"pause"}, Status: types.StatusOK, Response: []byte("RTSP/1.0 454 Session Not Found\r\nCSeq: 2\r\n\r\n")})

	findings := c.Findings()
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Type != FindingDeviation || f.Severity != SeverityMedium || f.StatusCode != 454 {
		t.Errorf("Unexpected finding: %+v", f)
	}
	if len(f.Details.Deviations) == 0 || f.Details.Deviations[0] != "unexpected_status" {
		t.Errorf("Deviations = %v", f.Details.Deviations)
	}
	if f.Response != "RTSP/1.0..." {
		t.Errorf("Response excerpt = %q", f.Response)
	}
}

func createTestReport(n int) *Report {
	r := NewReport("Test Report", "tcp://127.0.0.1:554")
	for i := 0; i < n; i++ {
		r.AddFinding(Finding{
			Type:        FindingTransportError,
			Severity:    SeverityHigh,
			Index:       i + 1,
			Path:        "<root> -> pause",
			Field:       "line",
			Description: "connection reset by peer",
			Request:     "PAUSE rtsp://127.0.0.1:554/ RTSP/1.0\r\n",
			Timestamp:   time.Now(),
		})
	}
	return r
}
