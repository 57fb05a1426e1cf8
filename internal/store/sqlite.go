package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/toolgate/internal/config"
)

// SQLite is the execution store backed by a local sqlite database.
type SQLite struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
	now    func() time.Time
}

// Verify SQLite implements ExecutionStore
var _ ExecutionStore = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLite{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// The orchestrator owns this table; creating it here only matters for
// standalone use and tests.
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_executions (
		session_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		tools_used TEXT,
		results_summary TEXT,
		actual_duration REAL,
		validation_status TEXT,
		validation_timestamp TEXT,
		started_at TEXT,
		completed_at TEXT,
		PRIMARY KEY (session_id, agent_name)
	);

	CREATE INDEX IF NOT EXISTS idx_agent_executions_status ON agent_executions(validation_status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return connectionError("ping", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, sessionID int64, agentName string) (*ExecutionRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var (
		rec         ExecutionRecord
		toolsUsed   sql.NullString
		summary     sql.NullString
		duration    sql.NullFloat64
		status      sql.NullString
		validatedAt sql.NullString
		startedAt   sql.NullString
		completedAt sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_name, tools_used, results_summary, actual_duration,
		       validation_status, validation_timestamp, started_at, completed_at
		FROM agent_executions WHERE session_id = ? AND agent_name = ?
	`, sessionID, agentName).Scan(&rec.SessionID, &rec.AgentName, &toolsUsed, &summary, &duration,
		&status, &validatedAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("execution", keyString(sessionID, agentName))
	}
	if err != nil {
		return nil, connectionError("get execution", err)
	}

	rec.ToolsUsed = toolsUsed.String
	rec.ResultsSummary = summary.String
	if duration.Valid {
		rec.ActualDuration = time.Duration(duration.Float64 * float64(time.Second))
	}
	rec.ValidationStatus = Status(status.String)
	rec.ValidationTimestamp = parseTime(validatedAt)
	if t := parseTime(startedAt); t != nil {
		rec.StartedAt = *t
	}
	rec.CompletedAt = parseTime(completedAt)

	return &rec, nil
}

func (s *SQLite) UpdateValidation(ctx context.Context, sessionID int64, agentName string, status Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid validation status %q", status)
	}
	return s.update(ctx, "update validation", `
		UPDATE agent_executions SET validation_status = ?, validation_timestamp = ?
		WHERE session_id = ? AND agent_name = ?
	`, sessionID, agentName, string(status), formatTime(at))
}

func (s *SQLite) Start(ctx context.Context, sessionID int64, agentName string) error {
	if err := checkKey(sessionID, agentName); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_executions (session_id, agent_name, tools_used, validation_status, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, agent_name) DO NOTHING
	`, sessionID, agentName, EncodeTools(nil), string(StatusPending), formatTime(s.now()))
	if err != nil {
		return connectionError("start execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, keyString(sessionID, agentName))
	}
	return nil
}

// AppendToolUse reads and rewrites tools_used inside one immediate
// transaction, so concurrent servers for the same run never drop a call.
func (s *SQLite) AppendToolUse(ctx context.Context, sessionID int64, agentName, tool string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return connectionError("begin append", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT tools_used FROM agent_executions WHERE session_id = ? AND agent_name = ?
	`, sessionID, agentName).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("execution", keyString(sessionID, agentName))
	}
	if err != nil {
		return connectionError("read tools_used", err)
	}

	tools := append(DecodeTools(raw.String), tool)
	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_executions SET tools_used = ? WHERE session_id = ? AND agent_name = ?
	`, EncodeTools(tools), sessionID, agentName); err != nil {
		return connectionError("write tools_used", err)
	}

	if err := tx.Commit(); err != nil {
		return connectionError("commit append", err)
	}
	return nil
}

func (s *SQLite) Complete(ctx context.Context, sessionID int64, agentName, summary string, duration time.Duration) error {
	return s.update(ctx, "complete execution", `
		UPDATE agent_executions SET results_summary = ?, actual_duration = ?, completed_at = ?
		WHERE session_id = ? AND agent_name = ?
	`, sessionID, agentName, summary, duration.Seconds(), formatTime(s.now()))
}

// update runs a single-row UPDATE whose last two placeholders are the key.
func (s *SQLite) update(ctx context.Context, op, query string, sessionID int64, agentName string, args ...any) error {
	if s.closed.Load() {
		return ErrClosed
	}

	args = append(args, sessionID, agentName)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return connectionError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFoundError("execution", keyString(sessionID, agentName))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return &t
		}
	}
	return nil
}
