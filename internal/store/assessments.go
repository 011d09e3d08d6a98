package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/response"
)

var assessmentColumns = []string{
	"id", "client_ref", "status", "current_module_id", "questions_asked", "questions_saved",
	"completion_rate", "pending_question_id", "deferred_question_id", "version", "created_at", "last_active_at", "completed_at",
}

var responseColumns = []string{
	"assessment_id", "question_id", "value", "score", "skipped", "seq", "answered_at",
}

var openStatuses = []any{
	string(assessment.StatusNotStarted), string(assessment.StatusInProgress), string(assessment.StatusPaused),
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateState inserts a new assessment. A second open assessment for the
// same client is rejected with a conflict fault.
func (s *Store) CreateState(ctx context.Context, st assessment.State) error {
	q, args := builder().Insert("assessments").
		Columns(assessmentColumns...).
		Values(stateValues(st)...).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fault.Wrap(fault.KindConflict, "store.CreateState",
				fmt.Errorf("client %q already has an open assessment: %w", st.ClientRef, err))
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// LoadState returns an assessment by id.
func (s *Store) LoadState(ctx context.Context, id string) (assessment.State, error) {
	q, args := builder().Select(assessmentColumns...).
		From(entsql.Table("assessments")).
		Where(entsql.EQ("id", id)).
		Query()
	st, err := scanState(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.State{}, fault.NotFound("store.LoadState", "assessment", id)
	}
	if err != nil {
		return assessment.State{}, fmt.Errorf("load assessment: %w", err)
	}
	return st, nil
}

// FindOpenState returns the client's open assessment, if any.
func (s *Store) FindOpenState(ctx context.Context, clientRef string) (assessment.State, bool, error) {
	q, args := builder().Select(assessmentColumns...).
		From(entsql.Table("assessments")).
		Where(entsql.And(
			entsql.EQ("client_ref", clientRef),
			entsql.In("status", openStatuses...),
		)).
		Limit(1).
		Query()
	st, err := scanState(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.State{}, false, nil
	}
	if err != nil {
		return assessment.State{}, false, fmt.Errorf("find open assessment: %w", err)
	}
	return st, true, nil
}

// ListAssessments returns assessments, most recently active first.
func (s *Store) ListAssessments(ctx context.Context, limit int) ([]assessment.State, error) {
	sel := builder().Select(assessmentColumns...).
		From(entsql.Table("assessments")).
		OrderBy(entsql.Desc("last_active_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []assessment.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListResponses returns an assessment's live responses in recording order.
func (s *Store) ListResponses(ctx context.Context, id string) ([]response.Response, error) {
	q, args := builder().Select(responseColumns...).
		From(entsql.Table("responses")).
		Where(entsql.EQ("assessment_id", id)).
		OrderBy("seq", "question_id").
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []response.Response
	for rows.Next() {
		var (
			r       response.Response
			raw     string
			skipped int
			at      int64
		)
		if err := rows.Scan(&r.AssessmentID, &r.QuestionID, &raw, &r.Score, &skipped, &r.Seq, &at); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &r.Value); err != nil {
			return nil, fmt.Errorf("decode response %s/%s: %w", r.AssessmentID, r.QuestionID, err)
		}
		r.Skipped = skipped != 0
		r.AnsweredAt = fromNanos(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commit applies c in one transaction. The state row is updated only if its
// stored version is c.State.Version-1.
func (s *Store) Commit(ctx context.Context, c assessment.Commit) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := c.State
	q, args := builder().Update("assessments").
		Set("status", string(st.Status)).
		Set("current_module_id", st.CurrentModuleID).
		Set("questions_asked", st.QuestionsAsked).
		Set("questions_saved", st.QuestionsSaved).
		Set("completion_rate", st.CompletionRate).
		Set("pending_question_id", st.PendingQuestionID).
		Set("deferred_question_id", st.DeferredQuestionID).
		Set("version", st.Version).
		Set("last_active_at", toNanos(st.LastActiveAt)).
		Set("completed_at", nullableNanos(st)).
		Where(entsql.And(
			entsql.EQ("id", st.ID),
			entsql.EQ("version", st.Version-1),
		)).
		Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missingOrStale(ctx, tx, st)
	}

	if len(c.Delete) > 0 {
		ids := make([]any, len(c.Delete))
		for i, id := range c.Delete {
			ids[i] = id
		}
		q, args := builder().Delete("responses").
			Where(entsql.And(
				entsql.EQ("assessment_id", st.ID),
				entsql.In("question_id", ids...),
			)).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("delete responses: %w", err)
		}
	}

	if len(c.Upsert) > 0 {
		ins := builder().Insert("responses").Columns(responseColumns...)
		for _, r := range c.Upsert {
			raw, err := json.Marshal(r.Value)
			if err != nil {
				return fmt.Errorf("encode response %s: %w", r.QuestionID, err)
			}
			ins.Values(st.ID, r.QuestionID, string(raw), r.Score, boolInt(r.Skipped), r.Seq, toNanos(r.AnsweredAt))
		}
		q, args := ins.OnConflict(
			entsql.ConflictColumns("assessment_id", "question_id"),
			entsql.ResolveWithNewValues(),
		).Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert responses: %w", err)
		}
	}

	if c.Handoff != nil {
		if err := insertHandoff(ctx, tx, *c.Handoff); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) missingOrStale(ctx context.Context, tx execer, st assessment.State) error {
	q, args := builder().Select("version").
		From(entsql.Table("assessments")).
		Where(entsql.EQ("id", st.ID)).
		Query()
	var stored int64
	err := tx.QueryRowContext(ctx, q, args...).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fault.NotFound("store.Commit", "assessment", st.ID)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	return fault.New(fault.KindConflict, "store.Commit",
		"assessment %q changed concurrently (stored version %d, expected %d)", st.ID, stored, st.Version-1)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (assessment.State, error) {
	var (
		st                  assessment.State
		status              string
		created, lastActive int64
		completed           sql.NullInt64
	)
	err := row.Scan(&st.ID, &st.ClientRef, &status, &st.CurrentModuleID, &st.QuestionsAsked, &st.QuestionsSaved,
		&st.CompletionRate, &st.PendingQuestionID, &st.DeferredQuestionID, &st.Version, &created, &lastActive, &completed)
	if err != nil {
		return assessment.State{}, err
	}
	st.Status = assessment.Status(status)
	st.CreatedAt = fromNanos(created)
	st.LastActiveAt = fromNanos(lastActive)
	if completed.Valid {
		t := fromNanos(completed.Int64)
		st.CompletedAt = &t
	}
	return st, nil
}

func stateValues(st assessment.State) []any {
	return []any{
		st.ID, st.ClientRef, string(st.Status), st.CurrentModuleID, st.QuestionsAsked, st.QuestionsSaved,
		st.CompletionRate, st.PendingQuestionID, st.DeferredQuestionID, st.Version, toNanos(st.CreatedAt), toNanos(st.LastActiveAt),
		nullableNanos(st),
	}
}

func nullableNanos(st assessment.State) any {
	if st.CompletedAt == nil {
		return nil
	}
	return toNanos(*st.CompletedAt)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
