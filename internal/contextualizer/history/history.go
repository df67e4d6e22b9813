// Package history keeps a local SQLite ledger of fetch attempts so
// operators can audit how resources were acquired over time.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS fetch_attempts (
    attempt_id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    backend TEXT NOT NULL,
    ok INTEGER NOT NULL,
    bytes INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fetch_attempts_url ON fetch_attempts(url);
CREATE INDEX IF NOT EXISTS idx_fetch_attempts_at ON fetch_attempts(fetched_at);
`

// Attempt is one recorded fetch.
type Attempt struct {
	URL      string
	Backend  string
	OK       bool
	Bytes    int64
	Duration time.Duration
	Error    string
}

// Summary aggregates the ledger for status reporting.
type Summary struct {
	Attempts      int
	Successes     int
	Failures      int
	AvgDurationMS float64
}

// Ledger is a SQLite-backed fetch-attempt log.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one fetch attempt.
func (l *Ledger) Record(a Attempt) error {
	ok := 0
	if a.OK {
		ok = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO fetch_attempts (url, backend, ok, bytes, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
		a.URL, a.Backend, ok, a.Bytes, a.Duration.Milliseconds(), nullableString(a.Error),
	)
	return err
}

// Summarize returns totals across all recorded attempts.
func (l *Ledger) Summarize() (*Summary, error) {
	row := l.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(ok), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM fetch_attempts`)

	var s Summary
	if err := row.Scan(&s.Attempts, &s.Successes, &s.AvgDurationMS); err != nil {
		return nil, err
	}
	s.Failures = s.Attempts - s.Successes
	return &s, nil
}

// RecentFailures returns the most recent failed attempts, newest first.
func (l *Ledger) RecentFailures(limit int) ([]Attempt, error) {
	rows, err := l.db.Query(`
		SELECT url, backend, bytes, duration_ms, COALESCE(error, '')
		FROM fetch_attempts
		WHERE ok = 0
		ORDER BY attempt_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var durationMS int64
		if err := rows.Scan(&a.URL, &a.Backend, &a.Bytes, &durationMS, &a.Error); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
