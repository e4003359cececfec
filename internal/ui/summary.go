package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// RenderPlan renders the paths a run would fuzz and how many cases each yields
func RenderPlan(entries []engine.PlanEntry) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Plan"))
	b.WriteString("\n")

	nameWidth := 4
	for _, e := range entries {
		if len(e.Name) > nameWidth {
			nameWidth = len(e.Name)
		}
	}

	name := lipgloss.NewStyle().Width(nameWidth + 2)
	num := lipgloss.NewStyle().Width(8).Align(lipgloss.Right)

	b.WriteString(HelpStyle.Render(name.Render("PATH") + num.Render("FIELDS") + num.Render("CASES") + "  NODES"))
	b.WriteString("\n")

	total := 0
	for _, e := range entries {
		total += e.Cases
		b.WriteString(InfoStyle.Render(name.Render(e.Name)))
		b.WriteString(num.Render(fmt.Sprintf("%d", e.Fields)))
		b.WriteString(ValueStyle.Render(num.Render(fmt.Sprintf("%d", e.Cases))))
		b.WriteString("  ")
		b.WriteString(HelpStyle.Render(strings.Join(e.Nodes, " -> ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Total cases", fmt.Sprintf("%d", total)))
	return b.String()
}

// RenderSummary renders the end-of-run summary box
func RenderSummary(sum engine.Summary, findings int) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Run summary"))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Enumerated", fmt.Sprintf("%d", sum.Enumerated)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Executed", fmt.Sprintf("%d", sum.Executed)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Skipped", fmt.Sprintf("%d", sum.Skipped)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Session resets", fmt.Sprintf("%d", sum.Resets)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Duration", formatDuration(sum.Duration)))
	b.WriteString("\n\n")

	for _, status := range []types.CaseStatus{
		types.StatusOK,
		types.StatusNoResponse,
		types.StatusProtocolError,
		types.StatusTransportError,
	} {
		b.WriteString(RenderLabel(string(status)))
		b.WriteString(" ")
		b.WriteString(StatusStyle(status).Render(fmt.Sprintf("%d", sum.ByStatus[status])))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	findingStyle := SuccessStyle
	if findings > 0 {
		findingStyle = WarningStyle
	}
	b.WriteString(RenderLabel("Findings"))
	b.WriteString(" ")
	b.WriteString(findingStyle.Render(fmt.Sprintf("%d", findings)))

	return PanelStyle.Render(b.String())
}
