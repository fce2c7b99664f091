// Package store is the persistence layer (C1): schema bootstrap via ordered,
// idempotent migrations, a single writer lock serializing DDL and multi-row
// mutations, and CRUD repositories per entity. Grounded on the teacher's
// internal/core/db/cache.go (WAL mode, connection pool sizing, singleton
// avoided here in favor of constructor injection per the spec's design
// notes on dependency inversion).
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Abrechen2/sublarr/internal/sublarrerr"
)

// Store wraps the shared SQLite connection. All repositories share it; the
// writerMu serializes DDL and multi-row mutations per §5's "shared-resource
// policy" (single writer lock), while reads remain non-blocking because
// modernc.org/sqlite in WAL mode allows concurrent readers.
type Store struct {
	db       *sql.DB
	writerMu sync.Mutex
	log      zerolog.Logger
	path     string
}

// Open creates or opens the database file, enables WAL mode, and runs all
// pending migrations. Any failure here is a startup-fatal ConfigError-class
// condition for the caller to handle.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &sublarrerr.DatabaseError{Op: "open", Message: err.Error()}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &sublarrerr.DatabaseError{Op: "pragma journal_mode", Message: err.Error()}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, &sublarrerr.DatabaseError{Op: "pragma foreign_keys", Message: err.Error()}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s := &Store{db: db, log: log.With().Str("component", "store").Logger(), path: path}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteLock serializes a DDL or multi-row mutation behind the single
// writer lock described in §5.
func (s *Store) withWriteLock(fn func() error) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	return fn()
}

// withTx runs fn inside a transaction while holding the writer lock, so
// multi-statement mutations are atomic relative to other writers.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	var outerErr error
	lockErr := s.withWriteLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return &sublarrerr.DatabaseError{Op: "begin", Message: err.Error()}
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			outerErr = err
			return nil
		}
		if err := tx.Commit(); err != nil {
			return &sublarrerr.DatabaseError{Op: "commit", Message: err.Error()}
		}
		return nil
	})
	if lockErr != nil {
		return lockErr
	}
	return outerErr
}

func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &sublarrerr.DatabaseError{Op: op, Message: err.Error()}
}

var errNotFound = fmt.Errorf("not found")

// ErrNotFound is returned by single-row lookups that find no matching row.
func ErrNotFound() error { return errNotFound }
