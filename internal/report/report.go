// Package report provides report generation for statefuzz runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Severity represents finding severity level
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// FindingType represents the type of finding
type FindingType string

const (
	FindingTransportError FindingType = "transport_error"
	FindingProtocolError  FindingType = "protocol_error"
	FindingNoResponse     FindingType = "no_response"
	FindingDeviation      FindingType = "deviation"
)

// Finding is one test case worth a second look
type Finding struct {
	ID          string      `json:"id"`
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	Index       int         `json:"index"`
	Path        string      `json:"path"`
	Field       string      `json:"field"`
	MutantIndex int         `json:"mutant_index"`
	StatusCode  int         `json:"status_code,omitempty"`
	Description string      `json:"description"`
	Request     string      `json:"request,omitempty"`
	Response    string      `json:"response,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Details     Details     `json:"details,omitempty"`
}

// Details contains additional finding details
type Details struct {
	Error      string   `json:"error,omitempty"`
	Deviations []string `json:"deviations,omitempty"`
	LengthSkew float64  `json:"length_skew,omitempty"`
	Distance   int      `json:"distance,omitempty"`
	Digest     string   `json:"digest,omitempty"`
}

// Statistics holds fuzzing statistics
type Statistics struct {
	TotalCases      int64         `json:"total_cases"`
	OKCount         int64         `json:"ok_count"`
	NoResponseCount int64         `json:"no_response_count"`
	TransportErrors int64         `json:"transport_errors"`
	ProtocolErrors  int64         `json:"protocol_errors"`
	FindingsFound   int64         `json:"findings_found"`
	Duration        time.Duration `json:"duration"`
	CasesPerSec     float64       `json:"cases_per_sec"`
	AvgCaseTime     time.Duration `json:"avg_case_time"`
	MinCaseTime     time.Duration `json:"min_case_time"`
	MaxCaseTime     time.Duration `json:"max_case_time"`
}

// MarshalJSON implements custom JSON marshaling for Statistics
func (s Statistics) MarshalJSON() ([]byte, error) {
	type Alias Statistics
	return json.Marshal(&struct {
		Alias
		Duration    string `json:"duration"`
		AvgCaseTime string `json:"avg_case_time"`
		MinCaseTime string `json:"min_case_time"`
		MaxCaseTime string `json:"max_case_time"`
	}{
		Alias:       Alias(s),
		Duration:    s.Duration.String(),
		AvgCaseTime: s.AvgCaseTime.String(),
		MinCaseTime: s.MinCaseTime.String(),
		MaxCaseTime: s.MaxCaseTime.String(),
	})
}

// Report represents a fuzzing report
type Report struct {
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`

	Target   string   `json:"target"`
	Protocol string   `json:"protocol"`
	Paths    []string `json:"paths"`

	Statistics     Statistics          `json:"statistics"`
	Findings       []Finding           `json:"findings"`
	SeverityCounts map[Severity]int    `json:"severity_counts"`
	TypeCounts     map[FindingType]int `json:"type_counts"`
}

// NewReport creates a new report with a fresh run ID
func NewReport(title, target string) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Title:          title,
		Version:        "1.0",
		GeneratedAt:    time.Now(),
		Target:         target,
		Findings:       make([]Finding, 0),
		SeverityCounts: make(map[Severity]int),
		TypeCounts:     make(map[FindingType]int),
	}
}

// AddFinding adds a finding to the report, assigning an ID if it has none
func (r *Report) AddFinding(f Finding) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	r.Findings = append(r.Findings, f)
	r.SeverityCounts[f.Severity]++
	r.TypeCounts[f.Type]++
	r.Statistics.FindingsFound++
}

// SetStatistics sets the statistics
func (r *Report) SetStatistics(stats Statistics) {
	stats.FindingsFound = int64(len(r.Findings))
	r.Statistics = stats
}

// Filter returns the findings keep accepts, in report order
func (r *Report) Filter(keep func(Finding) bool) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Generator is the interface for report generators
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager manages report generation
type Manager struct {
	generators map[string]Generator
	outputDir  string
}

// NewManager creates a new report manager
func NewManager(outputDir string) *Manager {
	m := &Manager{
		generators: make(map[string]Generator),
		outputDir:  outputDir,
	}

	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("markdown", &MarkdownGenerator{IncludeDetails: true})
	m.RegisterGenerator("md", &MarkdownGenerator{IncludeDetails: true})

	return m
}

func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// Formats lists the registered format names in sorted order
func (m *Manager) Formats() []string {
	names := make([]string, 0, len(m.generators))
	for name := range m.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate writes a report in the specified format into the output directory
func (m *Manager) Generate(report *Report, format string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := report.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("report_%s_%s.%s", timestamp, shortID(report.RunID), gen.Extension())
	path := filepath.Join(m.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	return path, nil
}

// Write renders the report to w instead of a file
func (m *Manager) Write(report *Report, format string, w io.Writer) error {
	gen, ok := m.generators[format]
	if !ok {
		return fmt.Errorf("unknown report format: %s", format)
	}
	return gen.Generate(report, w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
