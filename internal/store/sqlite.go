package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps documents in a single-table SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("sqlite store: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("sqlite store: set %s: %w", key, err)
	}
	return nil
}

// mutate runs a read-modify-write of one key in a transaction. The single
// connection limit already serializes writers; the transaction keeps the
// read and write of one operation atomic.
func (s *SQLiteStore) mutate(ctx context.Context, key string, fn func(json.RawMessage) json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer tx.Rollback()

	var existing sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite store: read %s: %w", key, err)
	}

	updated := fn(json.RawMessage(existing.String))
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(updated)); err != nil {
		return fmt.Errorf("sqlite store: write %s: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendArray(ctx context.Context, key string, element json.RawMessage) error {
	return s.mutate(ctx, key, func(existing json.RawMessage) json.RawMessage {
		return appendToArray(existing, element)
	})
}

func (s *SQLiteStore) AppendMap(ctx context.Context, key, field string, value json.RawMessage) error {
	return s.mutate(ctx, key, func(existing json.RawMessage) json.RawMessage {
		return appendToMap(existing, field, value)
	})
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite store: remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
