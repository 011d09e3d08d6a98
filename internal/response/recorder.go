package response

import (
	"time"

	"github.com/abhisek/vitalq/internal/catalog"
)

// Recorder validates, normalizes and scores answers.
type Recorder struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder over a catalog.
func NewRecorder(c *catalog.Catalog, opts ...RecorderOption) *Recorder {
	r := &Recorder{catalog: c, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record validates raw against the question and stores the scored result in
// h, replacing any earlier response for the same question. It reports
// whether this is the first time the question was answered (a replaced
// skip mark counts as first time).
func (r *Recorder) Record(h *History, assessmentID, questionID string, raw Value) (Response, bool, error) {
	q, err := r.catalog.Question(questionID)
	if err != nil {
		return Response{}, false, err
	}
	v, err := Normalize(q, raw)
	if err != nil {
		return Response{}, false, err
	}

	prev, existed := h.Get(questionID)
	seq := h.NextSeq()
	if existed && !prev.Skipped {
		// Overwrites update in place and keep their position.
		seq = prev.Seq
	}

	resp := Response{
		AssessmentID: assessmentID,
		QuestionID:   questionID,
		Value:        v,
		Score:        Score(q, v),
		Seq:          seq,
		AnsweredAt:   r.now().UTC(),
	}
	h.Put(resp)
	return resp, !existed || prev.Skipped, nil
}

// Skip records an adaptive skip mark for a question.
func (r *Recorder) Skip(h *History, assessmentID, questionID string) Response {
	resp := Response{
		AssessmentID: assessmentID,
		QuestionID:   questionID,
		Value:        None(),
		Skipped:      true,
		Seq:          h.NextSeq(),
		AnsweredAt:   r.now().UTC(),
	}
	h.Put(resp)
	return resp
}
