// Package audit keeps a local SQLite log of dispatched tool calls. The log
// is optional: a nil Store is valid and records nothing.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed call log.
type Store struct {
	db *sql.DB
}

// Entry is one recorded tool call.
type Entry struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Arguments  string    `json:"arguments,omitempty"`
	OK         bool      `json:"ok"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CalledAt   time.Time `json:"called_at"`
}

// Open opens (creating if needed) the call log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	return s, nil
}

func (s *Store) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		arguments TEXT,
		ok INTEGER NOT NULL,
		message TEXT,
		duration_ms INTEGER,
		called_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_called_at ON tool_calls(called_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one call into the log. Recording on a nil Store is a no-op.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CalledAt.IsZero() {
		e.CalledAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, tool, arguments, ok, message, duration_ms, called_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Tool, e.Arguments, e.OK, e.Message, e.DurationMS, e.CalledAt)
	return err
}

// Recent returns the latest n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if n < 1 {
		n = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, arguments, ok, message, duration_ms, called_at
		FROM tool_calls
		ORDER BY called_at DESC, rowid DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Tool, &e.Arguments, &e.OK, &e.Message, &e.DurationMS, &e.CalledAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
