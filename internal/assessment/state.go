// Package assessment runs the assessment lifecycle: it owns AssessmentState,
// serializes work per assessment, and drives progression, selection and
// recording one question at a time.
package assessment

import (
	"context"
	"time"

	"github.com/abhisek/vitalq/internal/response"
)

// Status is the lifecycle state of an assessment.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusCompleted  Status = "COMPLETED"
	StatusAbandoned  Status = "ABANDONED"
)

// Terminal reports whether the status rejects further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Open reports whether an assessment in this status can be resumed.
func (s Status) Open() bool {
	return !s.Terminal()
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// State is the persisted AssessmentState. QuestionsAsked and QuestionsSaved
// are derived from the response log on every change.
type State struct {
	ID                string `json:"assessmentId"`
	ClientRef         string `json:"clientRef"`
	Status            Status `json:"status"`
	CurrentModuleID   string `json:"currentModuleId"`
	QuestionsAsked    int    `json:"questionsAsked"`
	QuestionsSaved    int    `json:"questionsSaved"`
	CompletionRate    int    `json:"completionRate"`
	PendingQuestionID string `json:"pendingQuestionId,omitempty"`
	// DeferredQuestionID holds the question that was pending when an undo
	// took its place. It becomes pending again once the undone question is
	// answered.
	DeferredQuestionID string     `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastActiveAt       time.Time  `json:"lastActiveAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`

	// Version increases with every commit. The store rejects a commit whose
	// base version is stale.
	Version int64 `json:"-"`
}

// Commit is one all-or-nothing change to an assessment: the new state plus
// the response rows to write and delete. Handoff is set on the commit that
// completes the assessment.
type Commit struct {
	State   State
	Upsert  []response.Response
	Delete  []string
	Handoff *Handoff
}

// Handoff is the completed response set passed to analysis.
type Handoff struct {
	AssessmentID string              `json:"assessmentId"`
	ClientRef    string              `json:"clientRef"`
	CompletedAt  time.Time           `json:"completedAt"`
	Responses    []response.Response `json:"responses"`
	Summary      response.Summary    `json:"summary"`
}

// Repository persists assessments. Commit must apply the state change and
// the response changes in one transaction, and fail with a conflict fault
// when the stored version differs from c.State.Version-1.
type Repository interface {
	CreateState(ctx context.Context, st State) error
	LoadState(ctx context.Context, id string) (State, error)
	FindOpenState(ctx context.Context, clientRef string) (State, bool, error)
	ListResponses(ctx context.Context, id string) ([]response.Response, error)
	Commit(ctx context.Context, c Commit) error
}

// HandoffSink receives the completed response set once per assessment,
// after the completing commit.
type HandoffSink interface {
	Deliver(ctx context.Context, h Handoff) error
}
