// Package store is the sole gateway to the database. Scheduling operations
// are single conditional statements whose WHERE clauses carry the invariants:
// callers never pre-check state, they issue the update and branch on whether
// a row moved.
package store

import (
	"database/sql"
	"log/slog"
)

// Store executes all repository operations against a shared connection pool.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Store. logger may be nil, in which case slog.Default is used.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }
