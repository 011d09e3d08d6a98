// Package selector picks the next question within a module. An optional
// hint provider may choose among the candidates and mark redundant ones as
// skipped; without a usable hint the lowest catalog index wins.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/logic"
	"github.com/abhisek/vitalq/internal/metrics"
	"github.com/abhisek/vitalq/internal/response"
)

// DefaultTimeout bounds a single hint call.
const DefaultTimeout = 3 * time.Second

// DefaultRecent is how many recent answers are passed to the hint provider.
const DefaultRecent = 8

// Selection sources.
const (
	SourceHint     = "hint"
	SourceFallback = "fallback"
)

// RecentAnswer is an answered question as seen by a hint provider.
type RecentAnswer struct {
	QuestionID string
	Text       string
	ModuleID   string
	Value      response.Value
	Score      float64
	Weight     float64
}

// HintContext is everything a hint provider is told.
type HintContext struct {
	AssessmentID string
	Module       catalog.Module
	Recent       []RecentAnswer
	Candidates   []catalog.Question
}

// Hint is a provider's advice: which candidate to ask and which other
// candidates it considers redundant.
type Hint struct {
	QuestionID string
	SkipList   []string
	Reasoning  string
}

// HintProvider suggests the next question. Implementations must honor ctx.
type HintProvider interface {
	Suggest(ctx context.Context, hc HintContext) (*Hint, error)
}

// HintProviderFunc adapts a function to HintProvider.
type HintProviderFunc func(ctx context.Context, hc HintContext) (*Hint, error)

// Suggest calls f.
func (f HintProviderFunc) Suggest(ctx context.Context, hc HintContext) (*Hint, error) {
	return f(ctx, hc)
}

// Selection is the outcome of SelectNext.
type Selection struct {
	Question  catalog.Question
	Skip      []string // validated candidate ids to mark skipped
	Source    string
	Reasoning string
}

// Selector chooses the next question.
type Selector struct {
	catalog *catalog.Catalog
	logic   *logic.Evaluator
	hints   HintProvider
	timeout time.Duration
	recent  int
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Selector.
type Option func(*Selector)

// WithHintProvider enables AI-assisted selection.
func WithHintProvider(p HintProvider) Option {
	return func(s *Selector) { s.hints = p }
}

// WithTimeout sets the hint call budget.
func WithTimeout(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRecent sets how many recent answers the provider sees.
func WithRecent(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.recent = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

// New creates a Selector.
func New(c *catalog.Catalog, e *logic.Evaluator, opts ...Option) *Selector {
	s := &Selector{
		catalog: c,
		logic:   e,
		timeout: DefaultTimeout,
		recent:  DefaultRecent,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates returns the unanswered, applicable questions of a module in
// catalog order.
func (s *Selector) Candidates(moduleID string, h *response.History) []catalog.Question {
	var out []catalog.Question
	for _, q := range s.catalog.QuestionsInModule(moduleID) {
		if h.Has(q.ID) {
			continue
		}
		if s.logic.IsApplicable(q, h) {
			out = append(out, q)
		}
	}
	return out
}

// Fallback returns the lowest-index candidate. Candidates must be non-empty
// and in catalog order.
func Fallback(candidates []catalog.Question) catalog.Question {
	return candidates[0]
}

// SelectNext picks the next question from the module's candidates. ok is
// false when the module has no candidates left. Hint failures never
// surface; they fall back to catalog order.
func (s *Selector) SelectNext(ctx context.Context, assessmentID, moduleID string, h *response.History) (Selection, bool) {
	candidates := s.Candidates(moduleID, h)
	if len(candidates) == 0 {
		return Selection{}, false
	}

	fallback := Selection{Question: Fallback(candidates), Source: SourceFallback}
	if s.hints == nil {
		s.metrics.HintOutcome(metrics.HintDisabled)
		return fallback, true
	}

	hint, err := s.suggest(ctx, s.hintContext(assessmentID, moduleID, candidates, h))
	if err != nil {
		outcome := metrics.HintError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.HintTimeout
		}
		s.metrics.HintOutcome(outcome)
		s.log.Warn("hint provider failed; using catalog order",
			"assessment_id", assessmentID, "module_id", moduleID, "error", err)
		return fallback, true
	}

	sel, ok := s.accept(assessmentID, hint, candidates)
	if !ok {
		s.metrics.HintOutcome(metrics.HintInvalid)
		return fallback, true
	}
	s.metrics.HintOutcome(metrics.HintAccepted)
	return sel, true
}

// suggest calls the provider under the timeout budget. A provider that
// ignores cancellation is abandoned when the budget runs out.
func (s *Selector) suggest(ctx context.Context, hc HintContext) (*Hint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		hint *Hint
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		h, err := s.hints.Suggest(ctx, hc)
		done <- result{h, err}
	}()

	select {
	case r := <-done:
		s.metrics.HintLatency(time.Since(start))
		if r.err != nil {
			return nil, fault.Wrap(fault.KindHintProvider, "selector.suggest", r.err)
		}
		if r.hint == nil {
			return nil, fault.New(fault.KindHintProvider, "selector.suggest", "empty hint")
		}
		return r.hint, nil
	case <-ctx.Done():
		s.metrics.HintLatency(time.Since(start))
		return nil, fault.Wrap(fault.KindHintProvider, "selector.suggest", fmt.Errorf("hint call: %w", ctx.Err()))
	}
}

// accept validates a hint against the candidate set. The chosen id must be
// a candidate; skip entries that are not candidates, are required, or name
// the chosen question are dropped.
func (s *Selector) accept(assessmentID string, hint *Hint, candidates []catalog.Question) (Selection, bool) {
	byID := make(map[string]catalog.Question, len(candidates))
	for _, q := range candidates {
		byID[q.ID] = q
	}

	chosen, ok := byID[hint.QuestionID]
	if !ok {
		s.log.Warn("hint chose a non-candidate question; using catalog order",
			"assessment_id", assessmentID, "question_id", hint.QuestionID)
		return Selection{}, false
	}

	sel := Selection{Question: chosen, Source: SourceHint, Reasoning: hint.Reasoning}
	seen := make(map[string]bool, len(hint.SkipList))
	for _, id := range hint.SkipList {
		q, isCandidate := byID[id]
		var reason string
		switch {
		case seen[id]:
			continue
		case id == chosen.ID:
			reason = "skip names the chosen question"
		case !isCandidate:
			reason = "not a current candidate"
		case q.Required:
			reason = "question is required"
		case s.gatesRequired(id):
			reason = "a required question depends on it"
		}
		seen[id] = true
		if reason != "" {
			s.log.Warn("dropping hint skip entry",
				"assessment_id", assessmentID, "question_id", id, "reason", reason)
			continue
		}
		sel.Skip = append(sel.Skip, id)
	}
	return sel, true
}

// gatesRequired reports whether a required question depends on id,
// directly or through other conditions. Skipping id would exclude it.
func (s *Selector) gatesRequired(id string) bool {
	seen := map[string]bool{id: true}
	queue := s.catalog.Dependents(id)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if seen[dep] {
			continue
		}
		seen[dep] = true
		if q, err := s.catalog.Question(dep); err == nil && q.Required {
			return true
		}
		queue = append(queue, s.catalog.Dependents(dep)...)
	}
	return false
}

func (s *Selector) hintContext(assessmentID, moduleID string, candidates []catalog.Question, h *response.History) HintContext {
	mod, _ := s.catalog.Module(moduleID)
	hc := HintContext{AssessmentID: assessmentID, Module: mod, Candidates: candidates}
	for _, r := range h.Recent(s.recent) {
		q, err := s.catalog.Question(r.QuestionID)
		if err != nil {
			continue
		}
		hc.Recent = append(hc.Recent, RecentAnswer{
			QuestionID: q.ID,
			Text:       q.Text,
			ModuleID:   q.ModuleID,
			Value:      r.Value,
			Score:      r.Score,
			Weight:     q.Weight,
		})
	}
	return hc
}
