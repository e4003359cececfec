// Package ui renders run statistics, plans and a live dashboard in the terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

var (
	colorAccent = lipgloss.Color("#00FFFF")
	colorTitle  = lipgloss.Color("#FF00FF")
	colorGood   = lipgloss.Color("#00FF00")
	colorWarn   = lipgloss.Color("#FFFF00")
	colorBad    = lipgloss.Color("#FF0055")
	colorOrange = lipgloss.Color("#FF8800")
	colorBg     = lipgloss.Color("#16213E")
	colorDim    = lipgloss.Color("#666666")
	colorText   = lipgloss.Color("#FFFFFF")
)

func fg(c lipgloss.Color, bold bool) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(bold)
}

func framed(c lipgloss.Color, vertical, horizontal int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c).
		Padding(vertical, horizontal)
}

var (
	HeaderStyle = fg(colorAccent, true).Background(colorBg).Padding(0, 1).MarginBottom(1)
	TitleStyle  = fg(colorTitle, true).Background(colorBg).Padding(0, 2)

	PanelStyle      = framed(colorAccent, 1, 2).MarginRight(1)
	StatsPanelStyle = framed(colorTitle, 1, 2)
	LogPanelStyle   = framed(colorGood, 0, 1).Height(10)
	BoxStyle        = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorAccent)

	LabelStyle   = lipgloss.NewStyle().Foreground(colorDim).Width(18)
	ValueStyle   = fg(colorText, true)
	SuccessStyle = fg(colorGood, true)
	ErrorStyle   = fg(colorBad, true)
	WarningStyle = fg(colorWarn, false)
	InfoStyle    = fg(colorAccent, false)
	RunningStyle = SuccessStyle
	StoppedStyle = ErrorStyle
	FooterStyle  = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)
	KeyStyle     = fg(colorAccent, true)
	HelpStyle    = fg(colorDim, false)

	ProgressFullStyle  = fg(colorAccent, false)
	ProgressEmptyStyle = fg(colorDim, false)

	TransportErrorStyle = fg(colorBad, true)
	ProtocolErrorStyle  = fg(colorOrange, false)
	NoResponseStyle     = fg(colorWarn, false)

	SpinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

// StatusStyle picks the style used to print a case outcome.
func StatusStyle(s types.CaseStatus) lipgloss.Style {
	switch s {
	case types.StatusTransportError:
		return TransportErrorStyle
	case types.StatusProtocolError:
		return ProtocolErrorStyle
	case types.StatusNoResponse:
		return NoResponseStyle
	default:
		return SuccessStyle
	}
}

func RenderLabel(label string) string {
	return LabelStyle.Render(label + ":")
}

func RenderLabelValue(label, value string) string {
	return RenderLabel(label) + " " + ValueStyle.Render(value)
}

// RenderHelp renders a key binding hint such as "[q] quit".
func RenderHelp(key, description string) string {
	return KeyStyle.Render("["+key+"]") + " " + HelpStyle.Render(description)
}

const MiniBanner = `┌─ statefuzz ─ stateful protocol fuzzer ───────────────────────┐`

func GetBannerStyled() string {
	return fg(colorAccent, true).Render(MiniBanner)
}
