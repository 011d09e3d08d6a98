package components

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func press(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func yesNo() []Choice {
	return []Choice{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}, {Value: "unsure", Label: "Unsure"}}
}

func TestChoiceList_SingleSelect(t *testing.T) {
	c := NewChoiceList(yesNo(), false)

	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	assert.False(t, c.Accepted())
	assert.Equal(t, "no", c.Selected())

	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.True(t, c.Accepted())
	assert.Equal(t, "no", c.Selected())

	c, _ = c.Update(press('3'))
	assert.True(t, c.Accepted())
	assert.Equal(t, "unsure", c.Selected())

	c, _ = c.Update(press('9'))
	assert.False(t, c.Accepted(), "out of range digit")
}

func TestChoiceList_MultiSelect(t *testing.T) {
	c := NewChoiceList(yesNo(), true)

	c, _ = c.Update(tea.KeyPressMsg{Code: ' '})
	c, _ = c.Update(press('3'))
	assert.False(t, c.Accepted(), "digits toggle in multi mode")
	assert.Equal(t, []string{"yes", "unsure"}, c.Checked())

	c, _ = c.Update(press('1'))
	assert.Equal(t, []string{"unsure"}, c.Checked())

	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.True(t, c.Accepted())
	assert.Contains(t, c.View(), "[x] Unsure")
}

func TestChoiceList_Preselect(t *testing.T) {
	c := NewChoiceList(yesNo(), true)
	c.Preselect("no", "unsure")
	assert.Equal(t, []string{"no", "unsure"}, c.Checked())
	assert.Equal(t, 2, c.Cursor)

	s := NewChoiceList(yesNo(), false)
	s.Preselect("NO")
	assert.Equal(t, "no", s.Selected())
	assert.Empty(t, s.Checked())
}

func TestTextInput_NumericFilter(t *testing.T) {
	ti := NewTextInput("", true, 0)
	for _, r := range "-1a2.5.x" {
		ti, _ = ti.Update(press(r))
	}
	assert.Equal(t, "-12.5", ti.Value())

	n, err := ti.NumericValue()
	assert.NoError(t, err)
	assert.Equal(t, -12.5, n)
}

func TestProgressBar_Clamps(t *testing.T) {
	assert.Contains(t, NewProgressBar("", 150, 20).View(), "100%")
	assert.Contains(t, NewProgressBar("Done", -5, 20).View(), "0%")
}
