// Package audit provides a SQLite-backed audit trail for query and tool
// invocations. The trail is an observability side effect: recording failures
// are logged, never propagated into the execution path.
package audit

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Trail records invocation lifecycle events in dir/audit.db and mirrors
// them to the structured log. It implements the engine's audit sink.
type Trail struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS invocations (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    query TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    error TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);
`

// Open opens or creates the audit database in dir, initializing the schema
// if the database is new.
func Open(dir string, logger *slog.Logger) (*Trail, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, "audit.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL keeps writers from blocking concurrent readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{db: db, dbPath: dbPath, logger: logger}, nil
}

// Close closes the underlying database.
func (t *Trail) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Path returns the audit database file path.
func (t *Trail) Path() string {
	return t.dbPath
}

// Begin records the start of an invocation and returns its id.
func (t *Trail) Begin(action, queryText string) string {
	id := uuid.NewString()
	t.logger.Info("action started", "audit_id", id, "action", action)

	_, err := t.db.Exec(
		"INSERT INTO invocations (id, action, query, started_at) VALUES (?, ?, ?, ?)",
		id, action, queryText, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		t.logger.Error("audit write failed", "audit_id", id, "error", err)
	}
	return id
}

// Attempt records one executor attempt for the invocation.
func (t *Trail) Attempt(id string, attempt int, err error) {
	if err != nil {
		t.logger.Warn("attempt failed", "audit_id", id, "attempt", attempt, "error", err)
	}
	if _, dbErr := t.db.Exec(
		"UPDATE invocations SET attempts = ? WHERE id = ?", attempt, id,
	); dbErr != nil {
		t.logger.Error("audit write failed", "audit_id", id, "error", dbErr)
	}
}

// End records the final outcome of the invocation.
func (t *Trail) End(id, status string, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
		t.logger.Error("action failed", "audit_id", id, "status", status, "error", err)
	} else {
		t.logger.Info("action completed", "audit_id", id, "status", status)
	}

	if _, dbErr := t.db.Exec(
		"UPDATE invocations SET status = ?, error = ?, finished_at = ? WHERE id = ?",
		status, errText, time.Now().UTC().Format(time.RFC3339Nano), id,
	); dbErr != nil {
		t.logger.Error("audit write failed", "audit_id", id, "error", dbErr)
	}
}

// Entry is one recorded invocation.
type Entry struct {
	ID         string
	Action     string
	Query      string
	Status     string
	Error      string
	Attempts   int
	StartedAt  string
	FinishedAt string
}

// Recent returns the most recently started invocations, newest first.
func (t *Trail) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.Query(`
		SELECT id, action, query, status, COALESCE(error, ''), attempts, started_at, COALESCE(finished_at, '')
		FROM invocations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Query, &e.Status, &e.Error,
			&e.Attempts, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
