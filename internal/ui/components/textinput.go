package components

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// TextInput wraps bubbles/textinput. In numeric mode only digits, one
// leading minus sign and one decimal point are accepted.
type TextInput struct {
	Model       textinput.Model
	NumericOnly bool
}

// NewTextInput creates a focused input. limit caps the rune count when
// positive.
func NewTextInput(placeholder string, numericOnly bool, limit int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	if limit > 0 {
		ti.CharLimit = limit
	}
	return TextInput{Model: ti, NumericOnly: numericOnly}
}

// Init returns the focus command.
func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Update forwards msg to the underlying input, dropping keys that a
// numeric field cannot take.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.NumericOnly {
		if kmsg, ok := msg.(tea.KeyMsg); ok && !t.acceptsNumericKey(kmsg.String()) {
			return t, nil
		}
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

func (t TextInput) acceptsNumericKey(key string) bool {
	if len(key) != 1 {
		return true
	}
	cur := t.Model.Value()
	switch c := key[0]; {
	case c >= '0' && c <= '9':
		return true
	case c == '-':
		return cur == ""
	case c == '.':
		return !strings.Contains(cur, ".")
	default:
		return false
	}
}

// View renders the input.
func (t TextInput) View() string {
	return t.Model.View()
}

// Value returns the trimmed input.
func (t TextInput) Value() string {
	return strings.TrimSpace(t.Model.Value())
}

// SetValue replaces the input contents.
func (t *TextInput) SetValue(s string) {
	t.Model.SetValue(s)
}

// NumericValue parses the input as a float.
func (t TextInput) NumericValue() (float64, error) {
	return strconv.ParseFloat(t.Value(), 64)
}
