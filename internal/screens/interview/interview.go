// Package interview is the terminal screen that walks a client through an
// assessment one question at a time.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/response"
	"github.com/abhisek/vitalq/internal/router"
	"github.com/abhisek/vitalq/internal/screen"
	"github.com/abhisek/vitalq/internal/screens/summary"
	"github.com/abhisek/vitalq/internal/ui/components"
	"github.com/abhisek/vitalq/internal/ui/layout"
)

// Engine is the part of the assessment engine the screen drives.
type Engine interface {
	NextQuestion(ctx context.Context, id string) (assessment.NextResult, error)
	SubmitResponse(ctx context.Context, id, questionID string, value response.Value) (response.Response, error)
	PreviousQuestion(ctx context.Context, id string) (assessment.PreviousResult, error)
	Pause(ctx context.Context, id string) (assessment.PauseResult, error)
	Status(ctx context.Context, id string) (assessment.Report, error)
}

type phase int

const (
	phaseLoading phase = iota
	phaseAsking
	phasePaused
	phaseFailed
)

// Screen implements screen.Screen for a running assessment.
type Screen struct {
	ctx     context.Context
	engine  Engine
	catalog *catalog.Catalog
	id      string

	phase    phase
	question *catalog.Question
	report   assessment.Report
	choices  components.ChoiceList
	input    components.TextInput
	useInput bool

	// notice is a transient line under the question: a rejected answer or
	// "nothing to go back to".
	notice string
	err    error
	paused assessment.PauseResult
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)
var _ screen.StatusProvider = (*Screen)(nil)

// New creates an interview screen for assessment id. The catalog supplies
// module names for the header.
func New(ctx context.Context, engine Engine, c *catalog.Catalog, id string) *Screen {
	return &Screen{ctx: ctx, engine: engine, catalog: c, id: id}
}

func (s *Screen) Init() tea.Cmd {
	return s.fetchNext()
}

func (s *Screen) Title() string {
	if s.question == nil || s.catalog == nil {
		return "Assessment"
	}
	m, err := s.catalog.Module(s.question.ModuleID)
	if err != nil || m.Name == "" {
		return s.question.ModuleID
	}
	return m.Name
}

// Status shows answered counts and completion on the header.
func (s *Screen) Status() string {
	st := s.report.State
	if st.ID == "" {
		return ""
	}
	return fmt.Sprintf("%d answered  %d%% ", st.QuestionsAsked, st.CompletionRate)
}

func (s *Screen) KeyHints() []layout.KeyHint {
	switch s.phase {
	case phasePaused, phaseFailed:
		return []layout.KeyHint{{Key: "any key", Description: "Exit"}}
	case phaseAsking:
		hints := []layout.KeyHint{{Key: "Enter", Description: "Answer"}}
		if !s.useInput {
			hints = append(hints, layout.KeyHint{Key: "↑↓", Description: "Move"})
			if s.choices.Multi {
				hints = append(hints, layout.KeyHint{Key: "Space", Description: "Toggle"})
			}
		}
		return append(hints,
			layout.KeyHint{Key: "Ctrl+B", Description: "Previous"},
			layout.KeyHint{Key: "Ctrl+P", Description: "Pause"},
		)
	}
	return nil
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case questionMsg:
		return s.handleQuestion(msg)
	case submittedMsg:
		if msg.Err != nil {
			return s.handleError(msg.Err)
		}
		s.notice = ""
		return s, s.fetchNext()
	case previousMsg:
		return s.handlePrevious(msg)
	case pausedMsg:
		if msg.Err != nil {
			return s.handleError(msg.Err)
		}
		s.phase = phasePaused
		s.paused = msg.Result
		return s, nil
	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.phase == phaseAsking && s.useInput {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *Screen) handleQuestion(msg questionMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		return s.handleError(msg.Err)
	}
	s.report = msg.Report
	if msg.Next.Completed {
		report := msg.Report
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: summary.New(report)}
		}
	}
	return s, s.present(*msg.Next.Question, response.None())
}

func (s *Screen) handlePrevious(msg previousMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		return s.handleError(msg.Err)
	}
	if msg.Result.AtStart {
		s.notice = "This is the first question."
		return s, nil
	}
	s.notice = ""
	return s, s.present(*msg.Result.Question, msg.Result.PreviousValue)
}

// handleError keeps the interview going for answer-level problems and
// stops it for everything else.
func (s *Screen) handleError(err error) (screen.Screen, tea.Cmd) {
	switch fault.KindOf(err) {
	case fault.KindValidation, fault.KindNotApplicable:
		s.notice = err.Error()
		if s.question != nil {
			s.phase = phaseAsking
		}
		return s, nil
	}
	s.phase = phaseFailed
	s.err = err
	return s, nil
}

// present sets up the input for q, pre-filled with prev when going back.
func (s *Screen) present(q catalog.Question, prev response.Value) tea.Cmd {
	s.question = &q
	s.phase = phaseAsking

	choices, multi := choicesFor(q)
	if len(choices) == 0 {
		s.useInput = true
		numeric := q.Type == catalog.TypeNumberInput
		limit := 0
		if q.TextCfg != nil {
			limit = q.TextCfg.MaxLength
		}
		placeholder := "Type your answer..."
		if numeric {
			placeholder = "Enter a number..."
		}
		s.input = components.NewTextInput(placeholder, numeric, limit)
		if !prev.IsEmpty() {
			s.input.SetValue(prev.String())
		}
		return s.input.Init()
	}

	s.useInput = false
	s.choices = components.NewChoiceList(choices, multi)
	if !prev.IsEmpty() {
		s.choices.Preselect(prev.Atoms()...)
	}
	return nil
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch s.phase {
	case phasePaused, phaseFailed:
		return s, tea.Quit
	case phaseLoading:
		return s, nil
	}

	switch msg.String() {
	case "ctrl+b":
		return s, s.previous()
	case "ctrl+p":
		return s, s.pause()
	}

	if s.useInput {
		if msg.String() == "enter" {
			return s.submit()
		}
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}

	var cmd tea.Cmd
	s.choices, cmd = s.choices.Update(msg)
	if s.choices.Accepted() {
		return s.submit()
	}
	return s, cmd
}

// submit converts the current input into an answer value for the
// question type and sends it.
func (s *Screen) submit() (screen.Screen, tea.Cmd) {
	q := s.question
	if q == nil {
		return s, nil
	}
	v, err := answerValue(*q, s.choices, s.input, s.useInput)
	if err != nil {
		s.notice = err.Error()
		return s, nil
	}
	s.phase = phaseLoading
	ctx, engine, id, qid := s.ctx, s.engine, s.id, q.ID
	return s, func() tea.Msg {
		_, err := engine.SubmitResponse(ctx, id, qid, v)
		return submittedMsg{Err: err}
	}
}

func (s *Screen) fetchNext() tea.Cmd {
	s.phase = phaseLoading
	ctx, engine, id := s.ctx, s.engine, s.id
	return func() tea.Msg {
		next, err := engine.NextQuestion(ctx, id)
		if err != nil {
			return questionMsg{Err: err}
		}
		report, err := engine.Status(ctx, id)
		return questionMsg{Next: next, Report: report, Err: err}
	}
}

func (s *Screen) previous() tea.Cmd {
	ctx, engine, id := s.ctx, s.engine, s.id
	return func() tea.Msg {
		res, err := engine.PreviousQuestion(ctx, id)
		return previousMsg{Result: res, Err: err}
	}
}

func (s *Screen) pause() tea.Cmd {
	ctx, engine, id := s.ctx, s.engine, s.id
	return func() tea.Msg {
		res, err := engine.Pause(ctx, id)
		return pausedMsg{Result: res, Err: err}
	}
}

// choicesFor lists the selectable answers for q. Free-form types return
// nothing.
func choicesFor(q catalog.Question) ([]components.Choice, bool) {
	switch q.Type {
	case catalog.TypeYesNo:
		return words("yes", "no"), false
	case catalog.TypeYesNoUnsure:
		return words("yes", "no", "unsure"), false
	case catalog.TypeFrequency:
		return words(catalog.FrequencyValues()...), false
	case catalog.TypeMultipleChoice, catalog.TypeMultiSelect:
		out := make([]components.Choice, 0, len(q.Options))
		for _, o := range q.Options {
			label := o.Label
			if label == "" {
				label = o.Value
			}
			out = append(out, components.Choice{Value: o.Value, Label: label})
		}
		return out, q.Type == catalog.TypeMultiSelect
	case catalog.TypeLikertScale:
		sc := q.ScaleOrDefault()
		var out []components.Choice
		for i, n := 0, sc.Min; n <= sc.Max; i, n = i+1, n+1 {
			v := strconv.FormatFloat(n, 'f', -1, 64)
			label := v
			if i < len(sc.Labels) {
				label = fmt.Sprintf("%s  %s", v, sc.Labels[i])
			}
			out = append(out, components.Choice{Value: v, Label: label})
		}
		return out, false
	}
	return nil, false
}

func words(vals ...string) []components.Choice {
	out := make([]components.Choice, len(vals))
	for i, v := range vals {
		out[i] = components.Choice{Value: v, Label: strings.ToUpper(v[:1]) + v[1:]}
	}
	return out
}

func answerValue(q catalog.Question, choices components.ChoiceList, input components.TextInput, useInput bool) (response.Value, error) {
	switch {
	case q.Type == catalog.TypeNumberInput:
		n, err := input.NumericValue()
		if err != nil {
			return response.Value{}, errors.New("enter a number")
		}
		return response.Number(n), nil
	case useInput:
		return response.Text(input.Value()), nil
	case q.Type == catalog.TypeMultiSelect:
		return response.Choices(choices.Checked()...), nil
	case q.Type == catalog.TypeLikertScale:
		n, err := strconv.ParseFloat(choices.Selected(), 64)
		if err != nil {
			return response.Value{}, errors.New("pick a point on the scale")
		}
		return response.Number(n), nil
	default:
		return response.Text(choices.Selected()), nil
	}
}
