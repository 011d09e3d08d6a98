package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/vitalq/internal/assessment"
)

// PendingHandoff is an undelivered outbox entry.
type PendingHandoff struct {
	Handoff  assessment.Handoff
	Attempts int
}

func insertHandoff(ctx context.Context, tx *sql.Tx, h assessment.Handoff) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode handoff: %w", err)
	}
	q, args := builder().Insert("handoffs").
		Columns("assessment_id", "payload", "created_at").
		Values(h.AssessmentID, string(payload), toNanos(h.CompletedAt)).
		OnConflict(entsql.ConflictColumns("assessment_id"), entsql.ResolveWithIgnore()).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert handoff: %w", err)
	}
	return nil
}

// PendingHandoffs returns undelivered hand-offs, oldest first.
func (s *Store) PendingHandoffs(ctx context.Context, limit int) ([]PendingHandoff, error) {
	sel := builder().Select("payload", "attempts").
		From(entsql.Table("handoffs")).
		Where(entsql.IsNull("delivered_at")).
		OrderBy("created_at")
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list handoffs: %w", err)
	}
	defer rows.Close()

	var out []PendingHandoff
	for rows.Next() {
		var (
			payload string
			p       PendingHandoff
		)
		if err := rows.Scan(&payload, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan handoff: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &p.Handoff); err != nil {
			return nil, fmt.Errorf("decode handoff: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClaimHandoff takes the right to deliver an undelivered hand-off. It
// fails to claim when the hand-off is delivered or another claim was made
// at or after staleBefore.
func (s *Store) ClaimHandoff(ctx context.Context, assessmentID string, at, staleBefore time.Time) (bool, error) {
	q, args := builder().Update("handoffs").
		Set("claimed_at", toNanos(at)).
		Where(entsql.And(
			entsql.EQ("assessment_id", assessmentID),
			entsql.IsNull("delivered_at"),
			entsql.Or(
				entsql.IsNull("claimed_at"),
				entsql.LT("claimed_at", toNanos(staleBefore)),
			),
		)).
		Query()
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("claim handoff: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim handoff: %w", err)
	}
	return n == 1, nil
}

// MarkHandoffDelivered records a successful delivery.
func (s *Store) MarkHandoffDelivered(ctx context.Context, assessmentID string, at time.Time) error {
	q, args := builder().Update("handoffs").
		Set("delivered_at", toNanos(at)).
		Add("attempts", 1).
		Set("last_error", "").
		Where(entsql.EQ("assessment_id", assessmentID)).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("mark handoff delivered: %w", err)
	}
	return nil
}

// MarkHandoffFailed records a failed delivery attempt and releases the
// claim.
func (s *Store) MarkHandoffFailed(ctx context.Context, assessmentID string, cause error) error {
	q, args := builder().Update("handoffs").
		Add("attempts", 1).
		Set("last_error", cause.Error()).
		SetNull("claimed_at").
		Where(entsql.EQ("assessment_id", assessmentID)).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("mark handoff failed: %w", err)
	}
	return nil
}
