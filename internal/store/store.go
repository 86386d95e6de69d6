// Package store is the durable layer for the sync engine: queued messages,
// policy snapshots, local overrides, heartbeat samples, inventory snapshots,
// and log rows. Pure CRUD and indexed queries; no network calls.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle shared by every worker. Single-row writes
// are atomic; SQLite serializes concurrent writers, which is all the
// application-level locking the workers need.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the engine database at dbPath and applies the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open engine db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}
