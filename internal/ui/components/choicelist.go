package components

import (
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/vitalq/internal/ui/theme"
)

// Choice is one selectable entry. Value is what gets submitted; Label is
// what the user sees.
type Choice struct {
	Value string
	Label string
}

// ChoiceList is a vertical option list. In multi mode space toggles
// entries and enter confirms the set; otherwise enter picks the entry
// under the cursor. Digit keys jump to the first nine entries.
type ChoiceList struct {
	Choices  []Choice
	Multi    bool
	Cursor   int
	checked  map[int]bool
	accepted bool
}

// NewChoiceList creates a list with the cursor on the first entry.
func NewChoiceList(choices []Choice, multi bool) ChoiceList {
	return ChoiceList{Choices: choices, Multi: multi, checked: map[int]bool{}}
}

// Update handles navigation and selection keys.
func (c ChoiceList) Update(msg tea.Msg) (ChoiceList, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(c.Choices) == 0 {
		return c, nil
	}
	c.accepted = false

	key := kmsg.String()
	switch key {
	case "up", "k":
		if c.Cursor > 0 {
			c.Cursor--
		}
	case "down", "j":
		if c.Cursor < len(c.Choices)-1 {
			c.Cursor++
		}
	case "space", " ":
		if c.Multi {
			c.toggle(c.Cursor)
		}
	case "enter":
		c.accepted = true
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(c.Choices) && n <= 9 {
			c.Cursor = n - 1
			if c.Multi {
				c.toggle(c.Cursor)
			} else {
				c.accepted = true
			}
		}
	}
	return c, nil
}

func (c *ChoiceList) toggle(i int) {
	if c.checked == nil {
		c.checked = map[int]bool{}
	}
	c.checked[i] = !c.checked[i]
}

// Accepted reports whether the last key confirmed a selection.
func (c ChoiceList) Accepted() bool {
	return c.accepted
}

// Selected returns the value under the cursor.
func (c ChoiceList) Selected() string {
	if c.Cursor < 0 || c.Cursor >= len(c.Choices) {
		return ""
	}
	return c.Choices[c.Cursor].Value
}

// Checked returns the toggled values in list order.
func (c ChoiceList) Checked() []string {
	out := []string{}
	for i, ch := range c.Choices {
		if c.checked[i] {
			out = append(out, ch.Value)
		}
	}
	return out
}

// Preselect moves the cursor to, and in multi mode checks, the given
// values. Used to show a previous answer.
func (c *ChoiceList) Preselect(values ...string) {
	for i, ch := range c.Choices {
		for _, v := range values {
			if strings.EqualFold(ch.Value, v) {
				if c.Multi {
					c.toggle(i)
				}
				c.Cursor = i
			}
		}
	}
}

// View renders the list.
func (c ChoiceList) View() string {
	var b strings.Builder
	for i, ch := range c.Choices {
		prefix := "  "
		if i == c.Cursor {
			prefix = "> "
		}
		box := ""
		if c.Multi {
			box = "[ ] "
			if c.checked[i] {
				box = "[x] "
			}
		}
		line := fmt.Sprintf("%s%d) %s%s", prefix, i+1, box, ch.Label)

		switch {
		case i == c.Cursor:
			b.WriteString(theme.Cursor.Render(line))
		case c.checked[i]:
			b.WriteString(theme.Checked.Render(line))
		default:
			b.WriteString(theme.Unselected.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
