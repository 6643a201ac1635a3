// Package sqlitestore provides a tiqology.SessionStorage backed by SQLite.
//
// The record is a JSON document in a small key/value table, so one database
// can hold the session store of several profiles.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/storage"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store keeps the session record in one row of kv_store.
type Store struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

var _ tiqology.SessionStorage = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithKey overrides the row key. Default: storage.Key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) a SQLite database at dbPath and ensures the table exists.
// Use ":memory:" for an in-memory database (useful in tests).
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("sqlitestore: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", dbPath, err)
	}
	// A single connection keeps ":memory:" databases shared and writes ordered.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		key:    storage.Key,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "sqlitestore")

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: pragma wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored record, or nil when the row is absent.
func (s *Store) Load(ctx context.Context) (*tiqology.PersistedSession, error) {
	s.logger.Debug("sql", "op", "select", "key", s.key)

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: select %s: %w", s.key, err)
	}

	var rec tiqology.PersistedSession
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode: %w", err)
	}
	return &rec, nil
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, rec *tiqology.PersistedSession) error {
	if rec == nil {
		return errors.New("sqlitestore: nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode: %w", err)
	}

	s.logger.Debug("sql", "op", "upsert", "key", s.key)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the row.
func (s *Store) Clear(ctx context.Context) error {
	s.logger.Debug("sql", "op", "delete", "key", s.key)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("sqlitestore: delete %s: %w", s.key, err)
	}
	return nil
}
