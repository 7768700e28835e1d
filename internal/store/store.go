// Package store is the sole gateway to persisted state (component C1 in
// the component design): a single-file embedded SQLite database behind a
// serialized, mutex-guarded interface. Grounded on internal/memory/db.go's
// embed+migrate shape and internal/persistence/store.go's mutex-guarded
// single-instance convention from the teacher.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rdvcore/core/internal/apperr"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/001_add_project_knowledge.sql
var migration001 string

// Store is the process-wide gateway to the embedded database. Every
// exported method takes the mutex for its duration, matching spec.md §5's
// "single writer+reader at a time" resource model.
type Store struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	poisoned bool
}

// Open resolves a database path via the discovery order in spec.md §4.1
// and opens (creating if necessary) the SQLite file there. explicitPath,
// when non-empty, takes precedence over the discovery order entirely (it
// is how config.Config.DatabasePath / RDV_DATABASE_PATH reach the Store).
func Open(explicitPath string) (*Store, error) {
	path, err := resolvePath(explicitPath)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "create database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "open database", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens a throwaway on-disk database under dir (used by tests,
// mirroring internal/memory/memory_test.go's setupTestDB pattern — SQLite's
// ":memory:" mode doesn't survive the connection-pool limit of 1 cleanly
// across goroutines, so a tempdir file is used instead).
func OpenMemory(dir string) (*Store, error) {
	return Open(filepath.Join(dir, "test.db"))
}

// resolvePath implements the location discovery order: explicit path, then
// RDV_DATABASE_PATH, then an upward walk for sqlite.db, then
// ~/.remote-dev/sqlite.db. Fails with DatabaseNotFound only when every
// step is exhausted with nothing found AND no path could be derived to
// create one at (that last case does not actually occur below, since the
// home-directory fallback is always creatable; discovery only fails when
// the home directory itself cannot be resolved).
func resolvePath(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}
	if envPath := os.Getenv("RDV_DATABASE_PATH"); envPath != "" {
		return envPath, nil
	}
	if found, ok := walkUpForSQLiteFile(); ok {
		return found, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", apperr.Wrap(apperr.DatabaseNotFound, "no database path found and home directory unavailable", err)
	}
	return filepath.Join(home, ".remote-dev", "sqlite.db"), nil
}

func walkUpForSQLiteFile() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := cwd
	for {
		candidate := filepath.Join(dir, "sqlite.db")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// migrate executes the embedded schema and any migrations newer than the
// database's current schema_migrations version, mirroring
// internal/memory/db.go's versioned migration runner.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "execute schema", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "check schema version", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return apperr.Wrap(apperr.DatabaseError, fmt.Sprintf("run migration %d", m.version), err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.version, nowMillis(),
		); err != nil {
			return apperr.Wrap(apperr.DatabaseError, fmt.Sprintf("record migration %d", m.version), err)
		}
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withLock runs fn while holding the store mutex. If fn panics, the panic
// propagates to the caller and the store is marked poisoned, so every later
// call returns LockPoisoned — "data-integrity first" per spec.md §5.
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return apperr.New(apperr.LockPoisoned, "store mutex poisoned by a previous panic")
	}

	panicked := true
	defer func() {
		if panicked {
			s.poisoned = true
		}
	}()

	err := fn()
	panicked = false
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx so query helpers can run
// inside or outside a transaction interchangeably.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Transaction runs fn with all statements issued against a single *sql.Tx,
// committing only if fn returns nil. It is exposed for multi-statement
// atomicity callers (reorder, tier-sibling writes) and is itself mutex
// guarded like every other Store operation.
func (s *Store) Transaction(fn func(tx *sql.Tx) error) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return apperr.Wrap(apperr.DatabaseError, "begin transaction", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "commit transaction", err)
		}
		return nil
	})
}

// wrapDBErr passes an *apperr.Error through unchanged (it already carries
// a precise Kind) and wraps anything else as DatabaseError.
func wrapDBErr(err error, reason string) error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*apperr.Error); ok {
		return ae
	}
	if err == sql.ErrNoRows {
		return apperr.New(apperr.NotFound, reason)
	}
	return apperr.Wrap(apperr.DatabaseError, reason, err)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := millisToTime(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringOrEmpty(n sql.NullString) string {
	if n.Valid {
		return n.String
	}
	return ""
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
