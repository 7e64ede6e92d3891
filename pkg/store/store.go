// Package store persists stories, headlines, and the word bank in
// PostgreSQL. Every data write appends a change event to the outbox table in
// the same transaction, so downstream consumers never miss a write and never
// see one that rolled back.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the data access layer. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
