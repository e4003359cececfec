package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// MarkdownGenerator generates Markdown reports
type MarkdownGenerator struct {
	IncludeDetails bool
	MaxExcerpt     int // Bytes of request/response shown per finding, 0 means 512
}

// Extension returns the file extension
func (g *MarkdownGenerator) Extension() string {
	return "md"
}

// Generate generates a Markdown report
func (g *MarkdownGenerator) Generate(report *Report, w io.Writer) error {
	var b strings.Builder
	s := report.Statistics

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Target:** `%s`\n", report.Target)
	if report.Protocol != "" {
		fmt.Fprintf(&b, "- **Protocol:** %s\n", report.Protocol)
	}
	if len(report.Paths) > 0 {
		fmt.Fprintf(&b, "- **Paths:** %s\n", strings.Join(report.Paths, ", "))
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Test cases | %d |\n", s.TotalCases)
	fmt.Fprintf(&b, "| OK | %d |\n", s.OKCount)
	fmt.Fprintf(&b, "| No response | %d |\n", s.NoResponseCount)
	fmt.Fprintf(&b, "| Transport errors | %d |\n", s.TransportErrors)
	fmt.Fprintf(&b, "| Protocol errors | %d |\n", s.ProtocolErrors)
	fmt.Fprintf(&b, "| Findings | %d |\n", len(report.Findings))
	fmt.Fprintf(&b, "| Duration | %s |\n", s.Duration)
	fmt.Fprintf(&b, "| Cases/sec | %.2f |\n\n", s.CasesPerSec)

	if len(report.Findings) == 0 {
		b.WriteString("No findings.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("## Severity\n\n")
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo} {
		if n := report.SeverityCounts[sev]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", severityLabel(sev), n)
		}
	}
	b.WriteString("\n## Findings\n\n")

	findings := make([]Finding, len(report.Findings))
	copy(findings, report.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
	})

	for _, f := range findings {
		fmt.Fprintf(&b, "### #%d %s %s\n\n", f.Index, severityLabel(f.Severity), f.Type)
		fmt.Fprintf(&b, "- **Path:** `%s`\n", f.Path)
		fmt.Fprintf(&b, "- **Field:** `%s` (mutant %d)\n", f.Field, f.MutantIndex)
		if f.StatusCode != 0 {
			fmt.Fprintf(&b, "- **Status:** %d\n", f.StatusCode)
		}
		fmt.Fprintf(&b, "- **Description:** %s\n\n", f.Description)

		if !g.IncludeDetails {
			continue
		}
		if f.Details.Digest != "" {
			fmt.Fprintf(&b, "TLSH: `%s`\n\n", f.Details.Digest)
		}
		if f.Request != "" {
			fmt.Fprintf(&b, "Request:\n\n```\n%s\n```\n\n", truncate(f.Request, g.maxExcerpt()))
		}
		if f.Response != "" {
			fmt.Fprintf(&b, "Response:\n\n```\n%s\n```\n\n", truncate(f.Response, g.maxExcerpt()))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (g *MarkdownGenerator) maxExcerpt() int {
	if g.MaxExcerpt <= 0 {
		return 512
	}
	return g.MaxExcerpt
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func severityLabel(s Severity) string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	default:
		return "Info"
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
