package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/lock"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/logic"
	"github.com/abhisek/vitalq/internal/metrics"
	"github.com/abhisek/vitalq/internal/progression"
	"github.com/abhisek/vitalq/internal/response"
	"github.com/abhisek/vitalq/internal/selector"
)

// SourcePending marks a question that was already pending when asked for.
const SourcePending = "pending"

// Engine runs assessments against a catalog. Every mutating operation
// holds the per-assessment lock across load, change and commit.
type Engine struct {
	catalog  *catalog.Catalog
	repo     Repository
	logic    *logic.Evaluator
	progress *progression.Controller
	selector *selector.Selector
	recorder *response.Recorder
	locks    *lock.Manager
	sink     HandoffSink
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
	newID    func() string

	selectorOpts []selector.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelectorOptions passes options, such as a hint provider, to the
// question selector.
func WithSelectorOptions(opts ...selector.Option) Option {
	return func(e *Engine) { e.selectorOpts = append(e.selectorOpts, opts...) }
}

// WithLocks shares a lock manager, for example one backed by Redis.
func WithLocks(m *lock.Manager) Option {
	return func(e *Engine) { e.locks = m }
}

// WithHandoffSink sets where completed response sets are delivered.
func WithHandoffSink(s HandoffSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides assessment id generation.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// New creates an Engine.
func New(c *catalog.Catalog, repo Repository, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		repo:    repo,
		log:     logging.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = lock.NewManager(lock.WithLogger(e.log))
	}
	e.logic = logic.New(c)
	e.progress = progression.New(c, e.logic)
	e.recorder = response.NewRecorder(c, response.WithClock(e.now))
	sopts := append([]selector.Option{selector.WithLogger(e.log), selector.WithMetrics(e.metrics)}, e.selectorOpts...)
	e.selector = selector.New(c, e.logic, sopts...)
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// StartResult is returned by Start.
type StartResult struct {
	State    State
	Resuming bool
}

// NextResult is either a question to present or the completion signal.
type NextResult struct {
	Question  *catalog.Question
	Completed bool
	// Source tells whether the question came from a hint or catalog order.
	Source    string
	Reasoning string
	// Skipped lists questions the hint made redundant on this call.
	Skipped []string
}

// PreviousResult reports an undo. AtStart is set when there was nothing
// to undo.
type PreviousResult struct {
	Question      *catalog.Question
	PreviousValue response.Value
	AtStart       bool
}

// PauseResult is returned by Pause.
type PauseResult struct {
	State              State
	QuestionsAnswered  int
	ProgressPercentage int
}

// ResumeResult is returned by Resume.
type ResumeResult struct {
	State State
	Next  NextResult
}

// Report is a read-only view of an assessment.
type Report struct {
	State    State
	Progress progression.Progress
	Summary  response.Summary
}

// Start returns the client's open assessment or creates a new one.
func (e *Engine) Start(ctx context.Context, clientRef string) (StartResult, error) {
	const op = "assessment.Start"
	clientRef = strings.TrimSpace(clientRef)
	if clientRef == "" {
		return StartResult{}, fault.New(fault.KindValidation, op, "clientRef is required")
	}

	var res StartResult
	err := e.locks.WithLock(ctx, "client:"+clientRef, func(ctx context.Context) error {
		st, ok, err := e.repo.FindOpenState(ctx, clientRef)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			res = StartResult{State: st, Resuming: true}
			return nil
		}

		now := e.now().UTC()
		st = State{
			ID:              e.newID(),
			ClientRef:       clientRef,
			Status:          StatusNotStarted,
			CurrentModuleID: e.catalog.FirstModule(),
			CreatedAt:       now,
			LastActiveAt:    now,
			Version:         1,
		}
		if err := e.repo.CreateState(ctx, st); err != nil {
			if !fault.Is(err, fault.KindConflict) {
				return fmt.Errorf("%s: %w", op, err)
			}
			// Another replica created it first.
			existing, found, ferr := e.repo.FindOpenState(ctx, clientRef)
			if ferr != nil || !found {
				return fmt.Errorf("%s: %w", op, err)
			}
			res = StartResult{State: existing, Resuming: true}
			return nil
		}
		e.metrics.Transition(string(StatusNotStarted))
		e.log.Info("assessment started", "assessment_id", st.ID, "client_ref", clientRef)
		res = StartResult{State: st}
		return nil
	})
	return res, err
}

// NextQuestion returns the pending question, selecting a new one when
// none is pending. When every module is exhausted the assessment
// completes and the response set is handed off.
func (e *Engine) NextQuestion(ctx context.Context, id string) (NextResult, error) {
	const op = "assessment.NextQuestion"
	var res NextResult
	s, err := e.mutate(ctx, id, op, func(s *session) error {
		switch s.state.Status {
		case StatusCompleted:
			res = NextResult{Completed: true}
			s.readOnly = true
			return nil
		case StatusAbandoned:
			return alreadyCompleted(op, s.state)
		case StatusPaused:
			return fault.New(fault.KindInvalidTransition, op, "assessment %q is paused; resume it first", id)
		}
		s.setStatus(StatusInProgress)
		var err error
		res, err = e.advance(ctx, s)
		return err
	})
	if err != nil {
		return NextResult{}, err
	}
	e.deliver(ctx, s)
	return res, nil
}

// advance selects the next question for an open assessment, or completes
// it.
func (e *Engine) advance(ctx context.Context, s *session) (NextResult, error) {
	if s.state.PendingQuestionID == "" {
		s.state.PendingQuestionID = e.takeDeferred(s)
	}
	if pid := s.state.PendingQuestionID; pid != "" {
		if q, err := e.catalog.Question(pid); err == nil && e.isCandidate(q, s.history) {
			return NextResult{Question: &q, Source: SourcePending}, nil
		}
		s.state.PendingQuestionID = ""
	}

	moduleID, ok := e.progress.CurrentModule(s.history)
	if !ok {
		e.complete(s)
		return NextResult{Completed: true}, nil
	}

	sel, ok := e.selector.SelectNext(ctx, s.state.ID, moduleID, s.history)
	if !ok {
		return NextResult{}, fault.New(fault.KindInternal, "assessment.advance",
			"module %q is incomplete but has no candidates", moduleID)
	}
	for _, qid := range sel.Skip {
		e.recorder.Skip(s.history, s.state.ID, qid)
		e.log.Debug("question skipped by hint", "assessment_id", s.state.ID, "question_id", qid)
	}
	e.metrics.Skipped(len(sel.Skip))

	q := sel.Question
	s.state.PendingQuestionID = q.ID
	return NextResult{Question: &q, Source: sel.Source, Reasoning: sel.Reasoning, Skipped: sel.Skip}, nil
}

func (e *Engine) isCandidate(q catalog.Question, h *response.History) bool {
	return !h.Has(q.ID) && e.logic.IsApplicable(q, h)
}

// takeDeferred clears the deferred question and returns it when it can
// still be asked.
func (e *Engine) takeDeferred(s *session) string {
	id := s.state.DeferredQuestionID
	s.state.DeferredQuestionID = ""
	if id == "" {
		return ""
	}
	if q, err := e.catalog.Question(id); err == nil && e.isCandidate(q, s.history) {
		return id
	}
	return ""
}

func (e *Engine) complete(s *session) {
	now := e.now().UTC()
	s.setStatus(StatusCompleted)
	s.state.CompletedAt = &now
	s.state.PendingQuestionID = ""
	s.state.DeferredQuestionID = ""
	rs := s.history.Ordered()
	s.handoff = &Handoff{
		AssessmentID: s.state.ID,
		ClientRef:    s.state.ClientRef,
		CompletedAt:  now,
		Responses:    rs,
		Summary:      response.Summarize(e.catalog, rs),
	}
}

// SubmitResponse records an answer, then drops responses that the new
// answer made inapplicable.
func (e *Engine) SubmitResponse(ctx context.Context, id, questionID string, value response.Value) (response.Response, error) {
	const op = "assessment.SubmitResponse"
	var recorded response.Response
	_, err := e.mutate(ctx, id, op, func(s *session) error {
		if err := e.requireActive(op, s.state); err != nil {
			return err
		}
		q, err := e.catalog.Question(questionID)
		if err != nil {
			return err
		}
		if st := e.logic.Status(q, s.history); st != logic.Applicable {
			return fault.New(fault.KindNotApplicable, op, "question %q is %s", questionID, st)
		}

		r, first, err := e.recorder.Record(s.history, id, questionID, value)
		if err != nil {
			return err
		}
		e.metrics.ResponseRecorded(first)
		e.invalidate(s)
		if s.state.PendingQuestionID == questionID {
			s.state.PendingQuestionID = e.takeDeferred(s)
		}
		s.setStatus(StatusInProgress)
		recorded = r
		return nil
	})
	if err != nil {
		return response.Response{}, err
	}
	return recorded, nil
}

// PreviousQuestion undoes the most recent answer and makes it the pending
// question. Later skip marks stay unless the undo makes them inapplicable.
// The question it displaces is deferred until the undone one is answered.
func (e *Engine) PreviousQuestion(ctx context.Context, id string) (PreviousResult, error) {
	const op = "assessment.PreviousQuestion"
	var res PreviousResult
	_, err := e.mutate(ctx, id, op, func(s *session) error {
		if err := e.requireActive(op, s.state); err != nil {
			return err
		}
		latest, ok := s.history.LatestAnswer()
		if !ok {
			res = PreviousResult{AtStart: true}
			s.readOnly = true
			return nil
		}

		s.history.Delete(latest.QuestionID)
		e.invalidate(s)

		q, err := e.catalog.Question(latest.QuestionID)
		if err != nil {
			return err
		}
		if pid := s.state.PendingQuestionID; pid != "" && pid != q.ID && s.state.DeferredQuestionID == "" {
			s.state.DeferredQuestionID = pid
		}
		s.state.PendingQuestionID = q.ID
		s.setStatus(StatusInProgress)
		res = PreviousResult{Question: &q, PreviousValue: latest.Value}
		return nil
	})
	if err != nil {
		return PreviousResult{}, err
	}
	return res, nil
}

// Pause suspends an in-progress assessment.
func (e *Engine) Pause(ctx context.Context, id string) (PauseResult, error) {
	const op = "assessment.Pause"
	s, err := e.mutate(ctx, id, op, func(s *session) error {
		if s.state.Status.Terminal() {
			return alreadyCompleted(op, s.state)
		}
		if s.state.Status != StatusInProgress {
			return fault.New(fault.KindInvalidTransition, op, "cannot pause assessment %q in status %s", id, s.state.Status)
		}
		s.setStatus(StatusPaused)
		return nil
	})
	if err != nil {
		return PauseResult{}, err
	}
	return PauseResult{
		State:              s.state,
		QuestionsAnswered:  s.state.QuestionsAsked,
		ProgressPercentage: s.state.CompletionRate,
	}, nil
}

// Resume reactivates a paused assessment and returns the question that
// was pending when it paused.
func (e *Engine) Resume(ctx context.Context, id string) (ResumeResult, error) {
	const op = "assessment.Resume"
	var next NextResult
	s, err := e.mutate(ctx, id, op, func(s *session) error {
		if s.state.Status.Terminal() {
			return alreadyCompleted(op, s.state)
		}
		if s.state.Status != StatusPaused {
			return fault.New(fault.KindInvalidTransition, op, "assessment %q is not paused", id)
		}
		s.setStatus(StatusInProgress)
		var err error
		next, err = e.advance(ctx, s)
		return err
	})
	if err != nil {
		return ResumeResult{}, err
	}
	e.deliver(ctx, s)
	return ResumeResult{State: s.state, Next: next}, nil
}

// Abandon ends an assessment without completing it.
func (e *Engine) Abandon(ctx context.Context, id string) (State, error) {
	const op = "assessment.Abandon"
	s, err := e.mutate(ctx, id, op, func(s *session) error {
		if s.state.Status.Terminal() {
			return alreadyCompleted(op, s.state)
		}
		s.setStatus(StatusAbandoned)
		s.state.PendingQuestionID = ""
		s.state.DeferredQuestionID = ""
		return nil
	})
	if err != nil {
		return State{}, err
	}
	e.log.Info("assessment abandoned", "assessment_id", id)
	return s.state, nil
}

// Status returns the assessment with its progress and score summary.
func (e *Engine) Status(ctx context.Context, id string) (Report, error) {
	st, err := e.repo.LoadState(ctx, id)
	if err != nil {
		return Report{}, err
	}
	rs, err := e.repo.ListResponses(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("assessment.Status: %w", err)
	}
	h := response.NewHistory(rs)
	return Report{
		State:    st,
		Progress: e.progress.Progress(h),
		Summary:  response.Summarize(e.catalog, h.Ordered()),
	}, nil
}

// Responses returns an assessment's live responses in recording order.
func (e *Engine) Responses(ctx context.Context, id string) ([]response.Response, error) {
	if _, err := e.repo.LoadState(ctx, id); err != nil {
		return nil, err
	}
	return e.repo.ListResponses(ctx, id)
}

func (e *Engine) requireActive(op string, st State) error {
	if st.Status.Terminal() {
		return alreadyCompleted(op, st)
	}
	if st.Status == StatusPaused {
		return fault.New(fault.KindInvalidTransition, op, "assessment %q is paused; resume it first", st.ID)
	}
	return nil
}

func alreadyCompleted(op string, st State) error {
	return fault.New(fault.KindAlreadyCompleted, op, "assessment %q is %s", st.ID, st.Status)
}

func (e *Engine) invalidate(s *session) {
	dropped := e.logic.Invalidate(s.history)
	if len(dropped) == 0 {
		return
	}
	e.metrics.Invalidated(len(dropped))
	e.log.Info("dropped responses that no longer apply",
		"assessment_id", s.state.ID, "question_ids", dropped)
}

// deliver hands a completed response set to the sink. The outbox row was
// written with the completing commit, so a failure here is retried later.
func (e *Engine) deliver(ctx context.Context, s *session) {
	if s == nil || s.handoff == nil || e.sink == nil {
		return
	}
	if err := e.sink.Deliver(context.WithoutCancel(ctx), *s.handoff); err != nil {
		e.log.Warn("analysis hand-off failed; left in outbox",
			"assessment_id", s.state.ID, "error", err)
	}
}

// session is one locked read-modify-write of an assessment.
type session struct {
	state    State
	history  *response.History
	base     map[string]response.Response
	from     Status
	handoff  *Handoff
	readOnly bool
}

func (s *session) setStatus(st Status) {
	s.state.Status = st
}

// mutate loads the assessment under its lock, applies fn and commits the
// result as one unit. Nothing is written when fn fails or marks the
// session read-only.
func (e *Engine) mutate(ctx context.Context, id, op string, fn func(*session) error) (*session, error) {
	var s *session
	err := e.locks.WithLock(ctx, "assessment:"+id, func(ctx context.Context) error {
		st, err := e.repo.LoadState(ctx, id)
		if err != nil {
			return err
		}
		rs, err := e.repo.ListResponses(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		base := make(map[string]response.Response, len(rs))
		for _, r := range rs {
			base[r.QuestionID] = r
		}
		s = &session{state: st, history: response.NewHistory(rs), base: base, from: st.Status}

		if err := fn(s); err != nil {
			return err
		}
		if s.readOnly {
			return nil
		}
		e.refresh(s)
		upsert, del := s.changes()
		s.state.Version++
		if err := e.repo.Commit(ctx, Commit{State: s.state, Upsert: upsert, Delete: del, Handoff: s.handoff}); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if s.state.Status != s.from {
			e.metrics.Transition(string(s.state.Status))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// refresh recomputes the derived fields of the state from the responses.
func (e *Engine) refresh(s *session) {
	answered, skipped := s.history.Counts()
	s.state.QuestionsAsked = answered
	s.state.QuestionsSaved = skipped
	s.state.LastActiveAt = e.now().UTC()

	if s.state.Status == StatusCompleted {
		s.state.CompletionRate = 100
		return
	}
	s.state.CompletionRate = e.progress.CompletionRate(s.history)
	if pid := s.state.PendingQuestionID; pid != "" {
		if q, err := e.catalog.Question(pid); err == nil {
			s.state.CurrentModuleID = q.ModuleID
			return
		}
	}
	if m, ok := e.progress.CurrentModule(s.history); ok {
		s.state.CurrentModuleID = m
	}
}

// changes diffs the working history against what was loaded.
func (s *session) changes() (upsert []response.Response, del []string) {
	for _, r := range s.history.Ordered() {
		old, ok := s.base[r.QuestionID]
		if !ok || !sameResponse(old, r) {
			upsert = append(upsert, r)
		}
	}
	for qid := range s.base {
		if !s.history.Has(qid) {
			del = append(del, qid)
		}
	}
	sort.Strings(del)
	return upsert, del
}

func sameResponse(a, b response.Response) bool {
	return a.Value.Equal(b.Value) &&
		a.Skipped == b.Skipped &&
		a.Seq == b.Seq &&
		a.Score == b.Score &&
		a.AnsweredAt.Equal(b.AnsweredAt)
}
