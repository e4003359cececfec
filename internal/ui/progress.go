package ui

import (
	"fmt"
	"strings"
)

// ProgressBar draws the fraction of the planned case window already executed.
type ProgressBar struct {
	width    int
	fraction float64
	eta      string
}

func NewProgressBar(width int) *ProgressBar {
	return &ProgressBar{width: width}
}

// SetProgress clamps f into [0, 1].
func (p *ProgressBar) SetProgress(f float64) {
	p.fraction = min(max(f, 0), 1)
}

func (p *ProgressBar) SetETA(eta string) { p.eta = eta }

func (p *ProgressBar) SetWidth(width int) { p.width = width }

func (p *ProgressBar) Render() string {
	cells := max(p.width-10, 10)
	done := int(float64(cells) * p.fraction)

	line := ProgressFullStyle.Render(strings.Repeat("█", done)) +
		ProgressEmptyStyle.Render(strings.Repeat("░", cells-done)) +
		" " + ValueStyle.Render(fmt.Sprintf("%5.1f%%", p.fraction*100))
	if p.eta != "" {
		line += " " + InfoStyle.Render("ETA: "+p.eta)
	}
	return line
}

// SpinnerProgress shows the case currently in flight. Once stopped it
// renders a check mark in place of the animation.
type SpinnerProgress struct {
	frame   int
	text    string
	stopped bool
}

func NewSpinnerProgress() *SpinnerProgress {
	return &SpinnerProgress{text: "connecting..."}
}

func (s *SpinnerProgress) SetText(text string) { s.text = text }

func (s *SpinnerProgress) Stop() { s.stopped = true }

func (s *SpinnerProgress) Tick() {
	if !s.stopped {
		s.frame = (s.frame + 1) % len(SpinnerChars)
	}
}

func (s *SpinnerProgress) Render() string {
	if s.stopped {
		return SuccessStyle.Render("✓") + " " + s.text
	}
	return InfoStyle.Render(SpinnerChars[s.frame]) + " " + s.text
}
