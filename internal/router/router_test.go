package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"

	"github.com/abhisek/vitalq/internal/screen"
)

type stubScreen struct {
	title   string
	initRan bool
	got     []tea.Msg
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}

func (s *stubScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	s.got = append(s.got, msg)
	return s, nil
}

func (s *stubScreen) View(int, int) string { return s.title }
func (s *stubScreen) Title() string        { return s.title }

func TestPushPop(t *testing.T) {
	first := &stubScreen{title: "first"}
	r := New(first)

	second := &stubScreen{title: "second"}
	r.Update(PushScreenMsg{Screen: second})
	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "second", r.Active().Title())
	assert.True(t, second.initRan)

	r.Update(PopScreenMsg{})
	assert.Equal(t, 1, r.Depth())
	assert.Equal(t, "first", r.View(10, 10))

	r.Pop()
	assert.Equal(t, 1, r.Depth(), "bottom screen stays")
}

func TestReplace(t *testing.T) {
	r := New(&stubScreen{title: "first"})
	r.Push(&stubScreen{title: "second"})

	third := &stubScreen{title: "third"}
	r.Update(ReplaceScreenMsg{Screen: third})

	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "third", r.Active().Title())
	assert.True(t, third.initRan)
}

func TestUpdateForwardsToActiveOnly(t *testing.T) {
	first := &stubScreen{title: "first"}
	second := &stubScreen{title: "second"}
	r := New(first)
	r.Push(second)

	r.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.Empty(t, first.got)
	assert.Len(t, second.got, 1)
}
