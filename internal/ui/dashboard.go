package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Status represents the dashboard state
type Status int

const (
	StatusRunning Status = iota
	StatusStopping
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusStopping:
		return "Stopping"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// LogEntry represents one line in the activity log
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
}

// Dashboard is the live TUI model shown while a run is in progress
type Dashboard struct {
	width  int
	height int

	status    Status
	stats     *Stats
	statsView *StatsView
	progress  *ProgressBar
	spinner   *SpinnerProgress
	cancel    context.CancelFunc
	err       error

	logs    []LogEntry
	maxLogs int

	target string
}

// NewDashboard creates a dashboard over stats. cancel is called when the user quits.
func NewDashboard(stats *Stats, target string, cancel context.CancelFunc) *Dashboard {
	if stats == nil {
		stats = NewStats()
	}
	return &Dashboard{
		width:     80,
		height:    24,
		status:    StatusRunning,
		stats:     stats,
		statsView: NewStatsView(40),
		progress:  NewProgressBar(70),
		spinner:   NewSpinnerProgress(),
		cancel:    cancel,
		logs:      make([]LogEntry, 0, 64),
		maxLogs:   50,
		target:    target,
	}
}

// AddLog adds a log entry
func (d *Dashboard) AddLog(level, message string) {
	d.logs = append(d.logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	})
	if len(d.logs) > d.maxLogs {
		d.logs = d.logs[len(d.logs)-d.maxLogs:]
	}
}

// Err returns the error the run finished with, if any
func (d *Dashboard) Err() error {
	return d.err
}

// TickMsg is sent on each animation tick
type TickMsg time.Time

// CaseMsg carries an executed case into the dashboard
type CaseMsg struct {
	Result *types.CaseResult
}

// DoneMsg tells the dashboard the run has finished
type DoneMsg struct {
	Err error
}

// Init initializes the model
func (d *Dashboard) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if d.status == StatusRunning {
				d.status = StatusStopping
				d.AddLog("WARN", "stop requested")
				if d.cancel != nil {
					d.cancel()
				}
				return d, nil
			}
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.statsView.SetWidth(d.width / 3)
		d.progress.SetWidth(d.width - 4)

	case CaseMsg:
		d.logCase(msg.Result)

	case DoneMsg:
		d.err = msg.Err
		d.spinner.Stop()
		if msg.Err != nil {
			d.status = StatusFailed
			d.AddLog("ERROR", msg.Err.Error())
		} else {
			d.status = StatusCompleted
			d.AddLog("INFO", "run completed")
		}
		d.spinner.SetText(d.status.String())
		return d, tea.Quit

	case TickMsg:
		d.spinner.Tick()
		snap := d.stats.Snapshot()
		d.progress.SetProgress(snap.Progress)
		if snap.ETA > 0 {
			d.progress.SetETA(formatDuration(snap.ETA))
		}
		if snap.LastIndex > 0 {
			d.spinner.SetText(fmt.Sprintf("case %d  %s  %s", snap.LastIndex, snap.LastPath, snap.LastField))
		}
		return d, tickCmd()
	}

	return d, nil
}

func (d *Dashboard) logCase(res *types.CaseResult) {
	if res == nil {
		return
	}
	where := fmt.Sprintf("#%d %s [%s]", res.Index, strings.Join(res.Path, " -> "), res.Field)
	switch res.Status {
	case types.StatusTransportError:
		msg := where
		if res.Error != nil {
			msg += ": " + res.Error.Error()
		}
		d.AddLog("ERROR", msg)
	case types.StatusProtocolError:
		d.AddLog("WARN", where+": server error")
	case types.StatusNoResponse:
		d.AddLog("WARN", where+": no response")
	}
}

// View renders the dashboard
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.renderHeader())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.statsView.Render(d.stats.Snapshot()),
		d.renderLogPanel(),
	))
	b.WriteString("\n")
	b.WriteString(d.spinner.Render())
	b.WriteString("\n")
	b.WriteString(d.progress.Render())
	b.WriteString("\n")
	b.WriteString(d.renderFooter())

	return b.String()
}

func (d *Dashboard) renderHeader() string {
	title := TitleStyle.Render("statefuzz")

	var statusText string
	switch d.status {
	case StatusRunning:
		statusText = RunningStyle.Render("● RUNNING")
	case StatusStopping:
		statusText = WarningStyle.Render("■ STOPPING")
	case StatusCompleted:
		statusText = SuccessStyle.Render("✓ COMPLETED")
	default:
		statusText = StoppedStyle.Render("✗ FAILED")
	}

	left := title + "  " + statusText
	right := ""
	if d.target != "" {
		right = HelpStyle.Render("Target: ") + InfoStyle.Render(d.target)
	}

	padding := d.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}

	return BoxStyle.Width(d.width - 2).Render(left + strings.Repeat(" ", padding) + right)
}

func (d *Dashboard) renderLogPanel() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Activity"))
	b.WriteString("\n")

	start := 0
	if len(d.logs) > 8 {
		start = len(d.logs) - 8
	}

	limit := d.width/2 - 10
	for _, entry := range d.logs[start:] {
		levelStyle := HelpStyle
		switch entry.Level {
		case "ERROR":
			levelStyle = ErrorStyle
		case "WARN":
			levelStyle = WarningStyle
		case "INFO":
			levelStyle = InfoStyle
		}

		msg := entry.Message
		if limit > 20 && len(msg) > limit-15 {
			msg = msg[:limit-18] + "..."
		}

		fmt.Fprintf(&b, "%s %s %s\n",
			HelpStyle.Render(entry.Time.Format("15:04:05")),
			levelStyle.Render(fmt.Sprintf("%-5s", entry.Level)),
			msg,
		)
	}

	return LogPanelStyle.Width(d.width/2 - 4).Render(b.String())
}

func (d *Dashboard) renderFooter() string {
	if d.status == StatusRunning {
		return FooterStyle.Render(RenderHelp("q", "stop"))
	}
	return FooterStyle.Render(RenderHelp("q", "quit"))
}

// ProgramObserver forwards executed cases to a running tea.Program
type ProgramObserver struct {
	Program *tea.Program
}

// OnCase sends the case to the program
func (o ProgramObserver) OnCase(res *types.CaseResult) {
	if o.Program != nil {
		o.Program.Send(CaseMsg{Result: res})
	}
}

// NewProgram wraps d in a tea.Program drawn on the alternate screen
func NewProgram(d *Dashboard) *tea.Program {
	return tea.NewProgram(d, tea.WithAltScreen())
}
