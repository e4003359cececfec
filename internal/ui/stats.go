package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Stats aggregates executed test cases. It is safe for concurrent use.
type Stats struct {
	mu sync.RWMutex

	TotalCases      int64
	OKCount         int64
	NoResponseCount int64
	TransportErrors int64
	ProtocolErrors  int64

	StartTime    time.Time
	LastCaseTime time.Time

	TotalCaseTime time.Duration
	MinCaseTime   time.Duration
	MaxCaseTime   time.Duration

	// Planned is the number of cases expected, 0 if unknown
	Planned int64

	LastIndex int
	LastPath  string
	LastField string
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		StartTime:   time.Now(),
		MinCaseTime: time.Hour,
	}
}

// SetPlanned sets the expected number of cases
func (s *Stats) SetPlanned(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Planned = n
}

// OnCase records one executed test case
func (s *Stats) OnCase(res *types.CaseResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalCases++
	s.LastCaseTime = time.Now()
	s.LastIndex = res.Index
	s.LastPath = strings.Join(res.Path, " -> ")
	s.LastField = res.Field

	switch res.Status {
	case types.StatusOK:
		s.OKCount++
	case types.StatusNoResponse:
		s.NoResponseCount++
	case types.StatusTransportError:
		s.TransportErrors++
	case types.StatusProtocolError:
		s.ProtocolErrors++
	}

	s.TotalCaseTime += res.Duration
	if res.Duration < s.MinCaseTime {
		s.MinCaseTime = res.Duration
	}
	if res.Duration > s.MaxCaseTime {
		s.MaxCaseTime = res.Duration
	}
}

// Snapshot returns a copy of current stats
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		TotalCases:      s.TotalCases,
		OKCount:         s.OKCount,
		NoResponseCount: s.NoResponseCount,
		TransportErrors: s.TransportErrors,
		ProtocolErrors:  s.ProtocolErrors,
		Planned:         s.Planned,
		LastIndex:       s.LastIndex,
		LastPath:        s.LastPath,
		LastField:       s.LastField,
		ElapsedTime:     time.Since(s.StartTime),
	}

	if s.TotalCases > 0 {
		snap.AverageCase = s.TotalCaseTime / time.Duration(s.TotalCases)
		snap.OKRate = float64(s.OKCount) / float64(s.TotalCases) * 100
	}
	if secs := snap.ElapsedTime.Seconds(); secs >= 1 {
		snap.CPS = float64(s.TotalCases) / secs
	}
	if s.Planned > 0 {
		snap.Progress = float64(s.TotalCases) / float64(s.Planned)
		if snap.Progress > 1 {
			snap.Progress = 1
		}
		if snap.CPS > 0 && s.Planned > s.TotalCases {
			snap.ETA = time.Duration(float64(s.Planned-s.TotalCases)/snap.CPS) * time.Second
		}
	}
	return snap
}

// StatsSnapshot is an immutable snapshot of stats
type StatsSnapshot struct {
	TotalCases      int64
	OKCount         int64
	NoResponseCount int64
	TransportErrors int64
	ProtocolErrors  int64
	Planned         int64
	LastIndex       int
	LastPath        string
	LastField       string
	ElapsedTime     time.Duration
	AverageCase     time.Duration
	CPS             float64
	OKRate          float64
	Progress        float64
	ETA             time.Duration
}

// StatsView renders the statistics panel
type StatsView struct {
	width int
}

// NewStatsView creates a new stats view
func NewStatsView(width int) *StatsView {
	return &StatsView{width: width}
}

// SetWidth updates the view width
func (v *StatsView) SetWidth(width int) {
	v.width = width
}

// Render renders the stats view
func (v *StatsView) Render(snap StatsSnapshot) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Cases"))
	b.WriteString("\n")

	b.WriteString(RenderLabelValue("Executed", formatNumber(snap.TotalCases)))
	b.WriteString("\n")
	b.WriteString(RenderLabel("OK"))
	b.WriteString(" ")
	b.WriteString(SuccessStyle.Render(formatNumber(snap.OKCount)))
	b.WriteString(fmt.Sprintf(" (%.1f%%)", snap.OKRate))
	b.WriteString("\n")
	b.WriteString(RenderLabel("No response"))
	b.WriteString(" ")
	b.WriteString(NoResponseStyle.Render(formatNumber(snap.NoResponseCount)))
	b.WriteString("\n")
	b.WriteString(RenderLabel("Protocol errors"))
	b.WriteString(" ")
	b.WriteString(ProtocolErrorStyle.Render(formatNumber(snap.ProtocolErrors)))
	b.WriteString("\n")
	b.WriteString(RenderLabel("Transport errors"))
	b.WriteString(" ")
	b.WriteString(TransportErrorStyle.Render(formatNumber(snap.TransportErrors)))
	b.WriteString("\n\n")

	b.WriteString(HeaderStyle.Render("Timing"))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Cases/sec", fmt.Sprintf("%.1f", snap.CPS)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Avg case", formatDuration(snap.AverageCase)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Elapsed", formatDuration(snap.ElapsedTime)))

	if snap.LastIndex > 0 {
		b.WriteString("\n\n")
		b.WriteString(HeaderStyle.Render("Current"))
		b.WriteString("\n")
		b.WriteString(RenderLabelValue("Index", fmt.Sprintf("%d", snap.LastIndex)))
		b.WriteString("\n")
		b.WriteString(RenderLabelValue("Path", snap.LastPath))
		b.WriteString("\n")
		b.WriteString(RenderLabelValue("Field", snap.LastField))
	}

	style := StatsPanelStyle
	if v.width > 0 {
		style = style.Width(v.width)
	}
	return style.Render(b.String())
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
