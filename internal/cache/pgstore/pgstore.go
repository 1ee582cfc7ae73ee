// Package pgstore backs the cache with a single-table Postgres document
// store, for deployments where the dashboard's state should survive the
// local machine. It satisfies the same Backend contract as the in-memory
// and file stores; the cache layer treats its failures as misses.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rfoley/tapedeck/internal/cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS tapedeck_cache (
	key       TEXT PRIMARY KEY,
	payload   BYTEA NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a cache backend over one Postgres table.
type Store struct {
	db *sql.DB
}

var _ cache.Backend = (*Store)(nil)

// Open connects to Postgres and ensures the cache table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure cache table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM tapedeck_cache WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select cache row: %w", err)
	}
	return payload, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tapedeck_cache (key, payload, stored_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload, stored_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("upsert cache row: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tapedeck_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tapedeck_cache`); err != nil {
		return fmt.Errorf("clear cache table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
