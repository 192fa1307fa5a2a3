package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// SQLiteRecorder persists event history to SQLite.
// Writes that hit a locked database are retried with exponential backoff.
type SQLiteRecorder struct {
	db         *sql.DB
	mu         sync.RWMutex
	closed     bool
	maxRetries uint64
	maxElapsed time.Duration
}

// SQLiteOption configures a SQLiteRecorder.
type SQLiteOption func(*SQLiteRecorder)

// WithRetry bounds the retry of busy writes. maxRetries of zero disables
// retrying.
func WithRetry(maxRetries uint64, maxElapsed time.Duration) SQLiteOption {
	return func(s *SQLiteRecorder) {
		s.maxRetries = maxRetries
		s.maxElapsed = maxElapsed
	}
}

// NewSQLiteRecorder opens (or creates) a history database.
// The path should be a file path (e.g., "./history.db") or ":memory:" for testing.
func NewSQLiteRecorder(path string, opts ...SQLiteOption) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			hash INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			source TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_hash_timestamp
		ON events(hash, timestamp)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	s := &SQLiteRecorder{
		db:         db,
		maxRetries: 5,
		maxElapsed: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record implements Recorder.
func (s *SQLiteRecorder) Record(ctx context.Context, e *event.Event) error {
	entry, ok := entryFor(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRecorderClosed
	}
	if !ok {
		return nil
	}

	err := s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO events (hash, event_type, source, timestamp)
			VALUES (?, ?, ?, ?)
		`, int64(entry.Hash), entry.Type, entry.Source, entry.Timestamp.UnixNano())
		return err
	})
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Count implements Recorder.
func (s *SQLiteRecorder) Count(ctx context.Context, hash uint64, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrRecorderClosed
	}

	lower, upper := int64(math.MinInt64), int64(math.MaxInt64)
	if !from.IsZero() {
		lower = from.UnixNano()
	}
	if !to.IsZero() {
		upper = to.UnixNano()
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE hash = ? AND timestamp >= ? AND timestamp <= ?
	`, int64(hash), lower, upper).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Summary returns record counts grouped by event type and source.
func (s *SQLiteRecorder) Summary(ctx context.Context) ([]TypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrRecorderClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, source, COUNT(*)
		FROM events
		GROUP BY event_type, source
		ORDER BY event_type, source
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize events: %w", err)
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Source, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// Prune removes records older than before and returns how many were removed.
func (s *SQLiteRecorder) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrRecorderClosed
	}

	var removed int64
	err := s.retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, before.UnixNano())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return removed, nil
}

// Close implements Recorder.
func (s *SQLiteRecorder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func (s *SQLiteRecorder) retry(ctx context.Context, op func() error) error {
	if s.maxRetries == 0 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx))
}

// isBusy reports whether err is a transient lock error.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}
