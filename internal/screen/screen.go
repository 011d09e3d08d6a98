// Package screen defines the contract between the terminal app shell and
// the screens it hosts.
package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/vitalq/internal/ui/layout"
)

// Screen is one full-window view hosted by the router.
type Screen interface {
	Init() tea.Cmd

	// Update handles a message and returns the screen to keep on the stack.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the body between header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider lets a screen replace the default footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider lets a screen show a short status, such as progress, on
// the right of the header.
type StatusProvider interface {
	Status() string
}
