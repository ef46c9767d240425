// Package audit persists a queryable trail of assessment runs and guardrail
// verdicts in SQLite. One row per run, one row per verdict; raw agent text
// is never stored, only outcomes and counters.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aivet-io/aivet/internal/guard"
)

// Store persists run and verdict records in SQLite.
type Store struct {
	db *sql.DB
}

// RunRecord is the audit row for one assessment run.
type RunRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Identity     string    `json:"identity"`
	AITool       string    `json:"ai_tool"`
	State        string    `json:"state"`
	Reason       string    `json:"reason,omitempty"`
	SearchesUsed int       `json:"searches_used"`
	TokensUsed   int       `json:"tokens_used"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerdictRecord is the audit row for one guardrail invocation.
type VerdictRecord struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	identity TEXT NOT NULL,
	ai_tool TEXT NOT NULL,
	state TEXT NOT NULL,
	reason TEXT,
	searches_used INTEGER NOT NULL DEFAULT 0,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS verdicts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id);
`

// NewStore opens (and migrates) the audit database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating audit db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts the final audit row for a run.
func (s *Store) RecordRun(ctx context.Context, r *RunRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, identity, ai_tool, state, reason, searches_used, tokens_used, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Identity, r.AITool, r.State, r.Reason,
		r.SearchesUsed, r.TokensUsed, r.DurationMS, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// RecordVerdict appends one guardrail verdict for a run.
func (s *Store) RecordVerdict(ctx context.Context, runID string, v guard.Verdict) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (run_id, stage, outcome, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(v.Stage), string(v.Outcome), v.Reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording verdict: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, identity, ai_tool, state, reason, searches_used, tokens_used, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Identity, &r.AITool, &r.State,
			&reason, &r.SearchesUsed, &r.TokensUsed, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListVerdicts returns the verdicts recorded for a run in insertion order.
func (s *Store) ListVerdicts(ctx context.Context, runID string) ([]VerdictRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, outcome, reason, created_at FROM verdicts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRecord
	for rows.Next() {
		var v VerdictRecord
		var reason sql.NullString
		if err := rows.Scan(&v.RunID, &v.Stage, &v.Outcome, &reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning verdict row: %w", err)
		}
		v.Reason = reason.String
		out = append(out, v)
	}
	return out, rows.Err()
}
