package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/vitalq/internal/ui/theme"
)

// ProgressBar is a horizontal bar for a 0-100 percentage.
type ProgressBar struct {
	Label   string
	Percent int
	Width   int
}

// NewProgressBar creates a progress bar.
func NewProgressBar(label string, percent, width int) ProgressBar {
	return ProgressBar{Label: label, Percent: percent, Width: width}
}

// View renders the bar followed by the percentage.
func (p ProgressBar) View() string {
	var out string
	if p.Label != "" {
		out = theme.Body.Render(p.Label) + "  "
	}

	const percentWidth = 6
	barWidth := p.Width - lipgloss.Width(out) - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}
	pct := min(max(p.Percent, 0), 100)
	filled := barWidth * pct / 100

	out += theme.ProgressFilled.Render(strings.Repeat(" ", filled))
	out += theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled))
	out += theme.Hint.Render(fmt.Sprintf(" %3d%%", pct))
	return out
}
