package interview

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/vitalq/internal/ui/components"
	"github.com/abhisek/vitalq/internal/ui/layout"
	"github.com/abhisek/vitalq/internal/ui/theme"
)

func (s *Screen) View(width, height int) string {
	switch s.phase {
	case phaseFailed:
		return renderError(width, s.err)
	case phasePaused:
		return s.renderPaused(width)
	}
	if s.question == nil {
		return layout.Centered(width, theme.Hint, "\n\n\nLoading...")
	}
	return s.renderQuestion(width)
}

func (s *Screen) renderQuestion(width int) string {
	q := s.question
	var b strings.Builder

	barWidth := min(width-8, 60)
	bar := components.NewProgressBar("Progress", s.report.State.CompletionRate, barWidth)
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n\n")

	textWidth := min(width-8, 72)
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		theme.Body.Bold(true).Width(textWidth).Render(q.Text)))
	b.WriteString("\n")
	if q.Help != "" {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			theme.Hint.Width(textWidth).Render(q.Help)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if s.useInput {
		b.WriteString(layout.Centered(width, lipgloss.NewStyle(), "Answer: "+s.input.View()))
	} else {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, s.choices.View()))
	}

	if s.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(layout.Centered(width, theme.ErrorText, s.notice))
	}
	return b.String()
}

func (s *Screen) renderPaused(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(layout.Centered(width, theme.Title, "Assessment paused"))
	b.WriteString("\n\n")
	b.WriteString(layout.Centered(width, theme.Body, fmt.Sprintf(
		"%d questions answered, %d%% complete.", s.paused.QuestionsAnswered, s.paused.ProgressPercentage)))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Subtitle,
		"Run the same command again to pick up where you left off."))
	return b.String()
}

func renderError(width int, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return layout.Centered(width, theme.ErrorText,
		fmt.Sprintf("\n\n\nError: %s\n\nPress any key to exit.", msg))
}
