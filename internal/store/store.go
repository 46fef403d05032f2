// Package store is the Postgres-backed persistence used by the API, MCP,
// worker and scheduler processes.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/store/postgres"
)

// Store serves decks, render jobs and feedback from one pool.
type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

// Open connects the pool and, when migrate is set, applies the schema in a
// single transaction.
func Open(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*Store, error) {
	pool, err := postgres.NewPool(ctx, cfg.DSN(), cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, err
	}
	s := New(pool)
	if migrate {
		if err := s.WithTx(ctx, func(q *postgres.Queries) error { return q.Migrate(ctx) }); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Queries: postgres.New(pool), pool: pool}
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// WithTx runs fn against a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
