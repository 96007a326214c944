// Package store provides the data access layer for automation rules and
// their execution telemetry. Queries are built with squirrel against a
// pgxpool, wrapped through pgx's stdlib adapter so the same *sql.DB serves
// both plain queries and transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Store is the central data access object. It implements the engine's
// RuleSource and Recorder contracts.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}
}

// Pool returns the underlying pgxpool for callers that need pgx native
// operations (health checks, migrations).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// DB returns the stdlib-wrapped *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// withTx runs fn inside a database/sql transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
