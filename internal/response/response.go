// Package response records and scores answers. It owns the answer value
// variant, the per-type validation and scoring rules, and the per-assessment
// response history the rest of the engine reasons over.
package response

import (
	"sort"
	"time"
)

// Response is a single recorded answer, or an adaptive skip mark when
// Skipped is set (no value, zero score).
type Response struct {
	AssessmentID string    `json:"assessmentId"`
	QuestionID   string    `json:"questionId"`
	Value        Value     `json:"value"`
	Score        float64   `json:"score"`
	Skipped      bool      `json:"skipped,omitempty"`
	Seq          int64     `json:"seq"`
	AnsweredAt   time.Time `json:"answeredAt"`
}

// History is the live response set of one assessment, keyed by question.
// It holds at most one Response per question. A History is not safe for
// concurrent use; callers serialize access per assessment.
type History struct {
	byQuestion map[string]Response
}

// NewHistory builds a History from stored responses. Later entries for the
// same question replace earlier ones.
func NewHistory(rs []Response) *History {
	h := &History{byQuestion: make(map[string]Response, len(rs))}
	for _, r := range rs {
		h.byQuestion[r.QuestionID] = r
	}
	return h
}

// Get returns the response for a question.
func (h *History) Get(questionID string) (Response, bool) {
	r, ok := h.byQuestion[questionID]
	return r, ok
}

// Has reports whether the question is resolved by an answer or a skip.
func (h *History) Has(questionID string) bool {
	_, ok := h.byQuestion[questionID]
	return ok
}

// Put inserts or replaces the response for r.QuestionID.
func (h *History) Put(r Response) {
	h.byQuestion[r.QuestionID] = r
}

// Delete removes the response for a question.
func (h *History) Delete(questionID string) {
	delete(h.byQuestion, questionID)
}

// Len returns the number of responses, skips included.
func (h *History) Len() int {
	return len(h.byQuestion)
}

// Counts returns the number of answered and skipped questions.
func (h *History) Counts() (answered, skipped int) {
	for _, r := range h.byQuestion {
		if r.Skipped {
			skipped++
		} else {
			answered++
		}
	}
	return answered, skipped
}

// Ordered returns responses in recording order.
func (h *History) Ordered() []Response {
	out := make([]Response, 0, len(h.byQuestion))
	for _, r := range h.byQuestion {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

// LatestAnswer returns the most recently recorded non-skipped response.
func (h *History) LatestAnswer() (Response, bool) {
	var latest Response
	found := false
	for _, r := range h.byQuestion {
		if r.Skipped {
			continue
		}
		if !found || r.Seq > latest.Seq {
			latest = r
			found = true
		}
	}
	return latest, found
}

// NextSeq returns the sequence number for the next recording.
func (h *History) NextSeq() int64 {
	var max int64
	for _, r := range h.byQuestion {
		if r.Seq > max {
			max = r.Seq
		}
	}
	return max + 1
}

// Recent returns up to n of the latest answered responses, oldest first.
func (h *History) Recent(n int) []Response {
	var answered []Response
	for _, r := range h.Ordered() {
		if !r.Skipped {
			answered = append(answered, r)
		}
	}
	if n > 0 && len(answered) > n {
		answered = answered[len(answered)-n:]
	}
	return answered
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	c := &History{byQuestion: make(map[string]Response, len(h.byQuestion))}
	for k, v := range h.byQuestion {
		c.byQuestion[k] = v
	}
	return c
}
