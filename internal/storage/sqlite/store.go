// Package sqlite implements storage.Storage and storage.VectorStore on top
// of an embedded, write-ahead-logged SQLite file. The driver is the
// pure-Go, CGO-free github.com/ncruces/go-sqlite3 build (wazero-backed),
// registered under the standard "sqlite3" database/sql driver name.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3" with database/sql
	_ "github.com/ncruces/go-sqlite3/embed"  // bundles the WASM SQLite build, no system library needed

	"github.com/kgraphd/kgraphd/internal/storage"
)

// Store implements storage.Storage and storage.VectorStore over one SQLite
// database file. The process holds at most one Store per database file;
// database/sql's internal connection pool serializes access beneath it, and
// the WAL journal mode configured in the connection string lets concurrent
// readers proceed without blocking on an in-flight writer.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the database file at path, applies the required
// pragmas (WAL, busy_timeout, foreign_keys), and runs any pending schema
// migration. A nil logger defaults to slog.Default().
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connStr := storage.SQLiteConnString(path, false)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single physical file behind WAL tolerates concurrent readers, but
	// database/sql's pool must still funnel writers through SQLite's own
	// locking; capping MaxOpenConns keeps us from opening more OS-level
	// handles than the busy_timeout contention model assumes.
	db.SetMaxOpenConns(8)

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database/sql handle. It does not issue a
// final checkpoint; callers that need durability guarantees on shutdown
// should call Checkpoint first (the runtime supervisor does this as part
// of its graceful-shutdown sequence).
func (s *Store) Close() error {
	return s.db.Close()
}

// Checkpoint forces the WAL back into the main database file so that any
// reader opening a fresh connection — including another process — observes
// every write committed so far. This must run after every mutating tool
// call and before the adapter writes its response; see the concurrency
// model's key invariant.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.VectorStore = (*Store)(nil)
)
