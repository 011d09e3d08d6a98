// Package app is the Bubble Tea shell around the screen router.
package app

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/vitalq/internal/router"
	"github.com/abhisek/vitalq/internal/screen"
	"github.com/abhisek/vitalq/internal/ui/layout"
)

// Model is the root Bubble Tea model.
type Model struct {
	router *router.Router
	width  int
	height int
}

// New creates a Model showing initial.
func New(initial screen.Screen) Model {
	return Model{router: router.New(initial)}
}

func (m Model) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

var defaultHints = []layout.KeyHint{
	{Key: "Enter", Description: "Select"},
	{Key: "Ctrl+C", Description: "Quit"},
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	var title, status string
	hints := defaultHints
	if active != nil {
		title = active.Title()
		if sp, ok := active.(screen.StatusProvider); ok {
			status = sp.Status()
		}
		if hp, ok := active.(screen.KeyHintProvider); ok {
			if h := hp.KeyHints(); len(h) > 0 {
				hints = h
			}
		}
	}

	header := layout.RenderHeader(title, status, m.width)
	footer := layout.RenderFooter(hints, m.width)
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}
	v.SetContent(layout.RenderFrame(header, m.router.View(m.width, contentHeight), footer, m.width, m.height))
	return v
}

// Run starts the program and blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, initial screen.Screen) error {
	p := tea.NewProgram(New(initial), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal ui: %w", err)
	}
	return nil
}
