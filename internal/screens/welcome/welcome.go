// Package welcome shows the intro screen before an interview starts.
package welcome

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/vitalq/internal/router"
	"github.com/abhisek/vitalq/internal/screen"
	"github.com/abhisek/vitalq/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	bannerAt     = 300 * time.Millisecond
	detailsAt    = 800 * time.Millisecond
	totalDur     = 1200 * time.Millisecond
)

type tickMsg time.Time

// Intro describes the assessment about to be taken.
type Intro struct {
	ClientRef string
	Modules   []string
	Answered  int
	Resumed   bool
}

// Screen reveals the banner and assessment details, then hands over to the
// interview on the first key press.
type Screen struct {
	intro        Intro
	next         func() screen.Screen
	elapsed      time.Duration
	transitioned bool
}

var _ screen.Screen = (*Screen)(nil)

// New creates a welcome screen that is replaced by the screen next returns.
func New(intro Intro, next func() screen.Screen) *Screen {
	return &Screen{intro: intro, next: next}
}

func (w *Screen) Title() string {
	return ""
}

func (w *Screen) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.elapsed >= totalDur {
			return w, nil
		}
		w.elapsed += tickInterval
		return w, tick()

	case tea.KeyPressMsg:
		return w, w.transition()
	}
	return w, nil
}

func (w *Screen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	next := w.next()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (w *Screen) View(width, height int) string {
	var sections []string

	if w.elapsed >= bannerAt {
		sections = append(sections, RenderBanner(width), "")
		sections = append(sections, theme.Subtitle.Render("Health and lifestyle assessment"))
	}

	if w.elapsed >= detailsAt {
		sections = append(sections, "")
		sections = append(sections, theme.Body.Render("Client: "+w.intro.ClientRef))
		if w.intro.Resumed {
			sections = append(sections, theme.Body.Render(
				fmt.Sprintf("Picking up where you left off (%d answered).", w.intro.Answered)))
		}
		if len(w.intro.Modules) > 0 {
			sections = append(sections, "", theme.Card.Render(strings.Join(w.intro.Modules, "\n")))
		}
	}

	sections = append(sections, "", lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true).
		Render("press any key to begin"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}
