package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool abstracts the pgx connection pool so tests can substitute a mock.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore keeps documents in a jsonb column. Concurrent append
// operations serialize on a row lock instead of a process-wide mutex.
type PostgresStore struct {
	db Pool
}

// NewPostgresStore connects to dsn and ensures the documents table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	s := &PostgresStore{db: pool}
	if _, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS documents (
		key   TEXT PRIMARY KEY,
		value JSONB NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: init schema: %w", err)
	}
	return s, nil
}

// newPostgresStoreFromPool wires an existing pool, mock included.
func newPostgresStoreFromPool(db Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value json.RawMessage
	err := s.db.QueryRow(ctx, `SELECT value FROM documents WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres store: set %s: %w", key, err)
	}
	return nil
}

// mutate locks the row for the duration of a read-modify-write.
func (s *PostgresStore) mutate(ctx context.Context, key string, fn func(json.RawMessage) json.RawMessage) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing json.RawMessage
	err = tx.QueryRow(ctx, `SELECT value FROM documents WHERE key = $1 FOR UPDATE`, key).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres store: read %s: %w", key, err)
	}

	updated := fn(existing)
	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, updated); err != nil {
		return fmt.Errorf("postgres store: write %s: %w", key, err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendArray(ctx context.Context, key string, element json.RawMessage) error {
	return s.mutate(ctx, key, func(existing json.RawMessage) json.RawMessage {
		return appendToArray(existing, element)
	})
}

func (s *PostgresStore) AppendMap(ctx context.Context, key, field string, value json.RawMessage) error {
	return s.mutate(ctx, key, func(existing json.RawMessage) json.RawMessage {
		return appendToMap(existing, field, value)
	})
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres store: remove %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
