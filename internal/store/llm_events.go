package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// LLMEvent records one provider call.
type LLMEvent struct {
	Sequence     int64
	CreatedAt    time.Time
	AssessmentID string
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRepo appends provider call events.
type LLMEventRepo interface {
	AppendLLMEvent(ctx context.Context, ev LLMEvent) error
}

// QueryOpts filters event listings.
type QueryOpts struct {
	Limit        int    // 0 = unlimited
	After        int64  // sequence > After
	AssessmentID string // empty = all
}

var llmEventColumns = []string{
	"sequence", "created_at", "assessment_id", "provider", "model", "purpose", "input_tokens",
	"output_tokens", "latency_ms", "success", "error_message", "request_body", "response_body",
}

// AppendLLMEvent stores ev under the next global sequence number.
func (s *Store) AppendLLMEvent(ctx context.Context, ev LLMEvent) error {
	seq, err := s.seq.Next(ctx)
	if err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	q, args := builder().Insert("llm_events").
		Columns(llmEventColumns...).
		Values(seq, toNanos(ev.CreatedAt), ev.AssessmentID, ev.Provider, ev.Model, ev.Purpose,
			ev.InputTokens, ev.OutputTokens, ev.LatencyMs, boolInt(ev.Success),
			ev.ErrorMessage, ev.RequestBody, ev.ResponseBody).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save LLM event: %w", err)
	}
	return nil
}

// ListLLMEvents returns events newest first.
func (s *Store) ListLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.AssessmentID != "" {
		preds = append(preds, entsql.EQ("assessment_id", opts.AssessmentID))
	}

	sel := builder().Select(llmEventColumns...).
		From(entsql.Table("llm_events")).
		OrderBy(entsql.Desc("sequence"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list LLM events: %w", err)
	}
	defer rows.Close()

	var out []LLMEvent
	for rows.Next() {
		var (
			ev      LLMEvent
			created int64
			success int
		)
		if err := rows.Scan(&ev.Sequence, &created, &ev.AssessmentID, &ev.Provider, &ev.Model, &ev.Purpose,
			&ev.InputTokens, &ev.OutputTokens, &ev.LatencyMs, &success,
			&ev.ErrorMessage, &ev.RequestBody, &ev.ResponseBody); err != nil {
			return nil, fmt.Errorf("scan LLM event: %w", err)
		}
		ev.CreatedAt = fromNanos(created)
		ev.Success = success != 0
		out = append(out, ev)
	}
	return out, rows.Err()
}
