package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/response"
)

// Memory is an in-process repository with the same semantics as Store.
// It backs ephemeral runs and tests.
type Memory struct {
	mu          sync.Mutex
	states      map[string]assessment.State
	responses   map[string]map[string]response.Response
	handoffs    map[string]*memoryHandoff
	events      []LLMEvent
	failCommits error
}

type memoryHandoff struct {
	PendingHandoff
	delivered bool
	claimedAt time.Time
	lastError string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		states:    make(map[string]assessment.State),
		responses: make(map[string]map[string]response.Response),
		handoffs:  make(map[string]*memoryHandoff),
	}
}

// FailCommits makes every following Commit return err; nil restores normal
// behavior.
func (m *Memory) FailCommits(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommits = err
}

func (m *Memory) CreateState(_ context.Context, st assessment.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[st.ID]; ok {
		return fault.New(fault.KindConflict, "memory.CreateState", "assessment %q exists", st.ID)
	}
	if st.Status.Open() {
		for _, other := range m.states {
			if other.ClientRef == st.ClientRef && other.Status.Open() {
				return fault.New(fault.KindConflict, "memory.CreateState",
					"client %q already has an open assessment", st.ClientRef)
			}
		}
	}
	m.states[st.ID] = st
	m.responses[st.ID] = make(map[string]response.Response)
	return nil
}

func (m *Memory) LoadState(_ context.Context, id string) (assessment.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return assessment.State{}, fault.NotFound("memory.LoadState", "assessment", id)
	}
	return st, nil
}

func (m *Memory) FindOpenState(_ context.Context, clientRef string) (assessment.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.states {
		if st.ClientRef == clientRef && st.Status.Open() {
			return st, true, nil
		}
	}
	return assessment.State{}, false, nil
}

func (m *Memory) ListResponses(_ context.Context, id string) ([]response.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]response.Response, 0, len(m.responses[id]))
	for _, r := range m.responses[id] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (m *Memory) Commit(_ context.Context, c assessment.Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits != nil {
		return m.failCommits
	}

	cur, ok := m.states[c.State.ID]
	if !ok {
		return fault.NotFound("memory.Commit", "assessment", c.State.ID)
	}
	if cur.Version != c.State.Version-1 {
		return fault.New(fault.KindConflict, "memory.Commit",
			"assessment %q changed concurrently (stored version %d, expected %d)",
			c.State.ID, cur.Version, c.State.Version-1)
	}

	m.states[c.State.ID] = c.State
	rs := m.responses[c.State.ID]
	for _, id := range c.Delete {
		delete(rs, id)
	}
	for _, r := range c.Upsert {
		r.AssessmentID = c.State.ID
		rs[r.QuestionID] = r
	}
	if c.Handoff != nil {
		if _, exists := m.handoffs[c.State.ID]; !exists {
			m.handoffs[c.State.ID] = &memoryHandoff{PendingHandoff: PendingHandoff{Handoff: *c.Handoff}}
		}
	}
	return nil
}

// PendingHandoffs returns undelivered hand-offs, oldest first.
func (m *Memory) PendingHandoffs(_ context.Context, limit int) ([]PendingHandoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PendingHandoff
	for _, h := range m.handoffs {
		if !h.delivered {
			out = append(out, h.PendingHandoff)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Handoff, out[j].Handoff
		if !a.CompletedAt.Equal(b.CompletedAt) {
			return a.CompletedAt.Before(b.CompletedAt)
		}
		return a.AssessmentID < b.AssessmentID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClaimHandoff takes the right to deliver an undelivered hand-off.
func (m *Memory) ClaimHandoff(_ context.Context, assessmentID string, at, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handoffs[assessmentID]
	if !ok || h.delivered {
		return false, nil
	}
	if !h.claimedAt.IsZero() && !h.claimedAt.Before(staleBefore) {
		return false, nil
	}
	h.claimedAt = at
	return true, nil
}

// MarkHandoffDelivered records a successful delivery.
func (m *Memory) MarkHandoffDelivered(_ context.Context, assessmentID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handoffs[assessmentID]
	if !ok {
		return errors.New("no handoff for " + assessmentID)
	}
	h.Attempts++
	h.delivered = true
	h.lastError = ""
	return nil
}

// MarkHandoffFailed records a failed delivery attempt and releases the
// claim.
func (m *Memory) MarkHandoffFailed(_ context.Context, assessmentID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handoffs[assessmentID]
	if !ok {
		return errors.New("no handoff for " + assessmentID)
	}
	h.Attempts++
	h.lastError = cause.Error()
	h.claimedAt = time.Time{}
	return nil
}

// AppendLLMEvent stores ev in memory.
func (m *Memory) AppendLLMEvent(_ context.Context, ev LLMEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Sequence = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// LLMEvents returns a copy of the recorded events in order.
func (m *Memory) LLMEvents() []LLMEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LLMEvent(nil), m.events...)
}
