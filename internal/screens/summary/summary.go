// Package summary shows the outcome of a finished assessment.
package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/screen"
	"github.com/abhisek/vitalq/internal/ui/components"
	"github.com/abhisek/vitalq/internal/ui/layout"
	"github.com/abhisek/vitalq/internal/ui/theme"
)

// Screen displays the completion report.
type Screen struct {
	report assessment.Report
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

// New creates a summary screen for report.
func New(report assessment.Report) *Screen {
	return &Screen{report: report}
}

func (s *Screen) Init() tea.Cmd {
	return nil
}

func (s *Screen) Title() string {
	return "Summary"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Enter", Description: "Exit"}}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc", "q":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *Screen) View(width, height int) string {
	st := s.report.State
	sum := s.report.Summary

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Title, "Assessment complete"))
	b.WriteString("\n\n")

	bar := components.NewProgressBar("Completion", st.CompletionRate, min(width-8, 60))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
	b.WriteString("\n\n")

	b.WriteString(layout.Centered(width, theme.Body, fmt.Sprintf(
		"Answered: %d      Skipped by adaptive selection: %d", st.QuestionsAsked, st.QuestionsSaved)))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Subtitle, fmt.Sprintf(
		"Score %.1f   weighted %.1f", sum.RawScore, sum.WeightedScore)))
	b.WriteString("\n\n")

	rows := []string{fmt.Sprintf("%-24s %8s %8s %10s", "Module", "Answered", "Skipped", "Weighted")}
	for _, m := range sum.Modules {
		if m.Answered == 0 && m.Skipped == 0 {
			continue
		}
		rows = append(rows, fmt.Sprintf("%-24s %8d %8d %10.1f", truncate(m.ModuleID, 24), m.Answered, m.Skipped, m.WeightedScore))
	}
	table := theme.Card.Render(strings.Join(rows, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, table))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
