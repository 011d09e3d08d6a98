package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		id                   TEXT PRIMARY KEY,
		client_ref           TEXT NOT NULL,
		status               TEXT NOT NULL,
		current_module_id    TEXT NOT NULL DEFAULT '',
		questions_asked      INTEGER NOT NULL DEFAULT 0,
		questions_saved      INTEGER NOT NULL DEFAULT 0,
		completion_rate      INTEGER NOT NULL DEFAULT 0,
		pending_question_id  TEXT NOT NULL DEFAULT '',
		deferred_question_id TEXT NOT NULL DEFAULT '',
		version              INTEGER NOT NULL DEFAULT 0,
		created_at           INTEGER NOT NULL,
		last_active_at       INTEGER NOT NULL,
		completed_at         INTEGER
	)`,
	// At most one open assessment per respondent.
	`CREATE UNIQUE INDEX IF NOT EXISTS assessments_open_client
		ON assessments (client_ref)
		WHERE status IN ('NOT_STARTED', 'IN_PROGRESS', 'PAUSED')`,
	`CREATE TABLE IF NOT EXISTS responses (
		assessment_id TEXT NOT NULL REFERENCES assessments (id) ON DELETE CASCADE,
		question_id   TEXT NOT NULL,
		value         TEXT NOT NULL,
		score         REAL NOT NULL DEFAULT 0,
		skipped       INTEGER NOT NULL DEFAULT 0,
		seq           INTEGER NOT NULL,
		answered_at   INTEGER NOT NULL,
		PRIMARY KEY (assessment_id, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS llm_events (
		sequence      INTEGER PRIMARY KEY,
		created_at    INTEGER NOT NULL,
		assessment_id TEXT NOT NULL DEFAULT '',
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_events_assessment ON llm_events (assessment_id)`,
	`CREATE TABLE IF NOT EXISTS handoffs (
		assessment_id TEXT PRIMARY KEY REFERENCES assessments (id) ON DELETE CASCADE,
		payload       TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		delivered_at  INTEGER,
		claimed_at    INTEGER,
		attempts      INTEGER NOT NULL DEFAULT 0,
		last_error    TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
