package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists namespaces to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a datastore database.
// The path should be a file path (e.g., "./datastore.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Namespace implements Store.
func (s *SQLiteStore) Namespace(name string) Namespace {
	return &sqliteNamespace{store: s, name: name}
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

type sqliteNamespace struct {
	store *SQLiteStore
	name  string
}

func (n *sqliteNamespace) Name() string { return n.name }

func (n *sqliteNamespace) Get(ctx context.Context, key string) (string, error) {
	s := n.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv
		WHERE namespace = ? AND key = ?
	`, n.name, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", n.name, key, err)
	}
	return value, nil
}

func (n *sqliteNamespace) Set(ctx context.Context, key, value string) error {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value
	`, n.name, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", n.name, key, err)
	}
	return nil
}

func (n *sqliteNamespace) Remove(ctx context.Context, key string) error {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv
		WHERE namespace = ? AND key = ?
	`, n.name, key)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", n.name, key, err)
	}
	return nil
}

func (n *sqliteNamespace) Contains(ctx context.Context, key string) (bool, error) {
	_, err := n.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (n *sqliteNamespace) Keys(ctx context.Context) ([]string, error) {
	s := n.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE namespace = ?
		ORDER BY key
	`, n.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", n.name, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

func (n *sqliteNamespace) RemoveAll(ctx context.Context) error {
	s := n.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ?`, n.name)
	if err != nil {
		return fmt.Errorf("remove all %s: %w", n.name, err)
	}
	return nil
}
