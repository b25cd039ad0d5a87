// Package history persists REPL input lines to a local SQLite database so
// a session can be replayed or inspected after the fact. cmd/loxvm's
// runREPL records every line it reads; neither internal/vm nor
// internal/compiler depends on this package, and a failure to open the
// database degrades to an unrecorded REPL rather than a fatal error
// (SPEC_FULL.md §3).
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded REPL line.
type Entry struct {
	ID        int64
	Line      string
	Errored   bool
	CreatedAt time.Time
}

// History wraps a SQLite-backed store of REPL input.
type History struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	line       TEXT NOT NULL,
	errored    INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and
// ensures the history table exists.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// Record appends one REPL line, tagged with whether it produced a
// compile or runtime error.
func (h *History) Record(line string, errored bool) error {
	_, err := h.db.Exec(
		`INSERT INTO history (line, errored, created_at) VALUES (?, ?, ?)`,
		line, errored, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recently recorded entries, oldest
// first.
func (h *History) Recent(n int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, line, errored, created_at FROM history ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Line, &e.Errored, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
