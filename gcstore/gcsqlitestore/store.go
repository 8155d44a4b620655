// Package gcsqlitestore provides a SQLite-backed [gcstore.ArchiveStore],
// for deployments that want finished games in one queryable file
// instead of a directory tree.
//
// The backing driver is chosen at build time:
// builds with cgo use mattn/go-sqlite3,
// and builds without cgo (or with the purego tag) use modernc.org/sqlite.
package gcsqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/goban-engine/goban/gcstore"
)

// blobHashSize is the exact key length accepted by the store.
const blobHashSize = 32

// Store is a SQLite-backed archive of finished games.
type Store struct {
	log *slog.Logger

	// The string "purego" or "cgo" depending on build tags.
	BuildType string

	// SQLite transaction locking interacts poorly with Go's
	// connection pooling, so reads and writes use separate pools
	// and the write pool is capped at one connection. Contending
	// writers block instead of surfacing "database is locked".
	ro, rw *sql.DB
}

var _ gcstore.ArchiveStore = (*Store)(nil)

// NewOnDiskStore opens or creates the archive database at dbPath.
func NewOnDiskStore(ctx context.Context, log *slog.Logger, dbPath string) (*Store, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
		}

		// The startup pragma commands fail without an existing file.
		// Not os.Create: that would truncate a file that appeared
		// between the stat and now.
		f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty database file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close new empty database file: %w", err)
		}
	}

	uri := "file:" + dbPath + "?mode=rw"

	// The driver type comes from the sqlitedriver_*.go file
	// chosen based on build tags.
	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}
	rw.SetMaxOpenConns(1)

	// Persistent, and only relevant to on-disk databases.
	if _, err := rw.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	if err := migrate(ctx, rw); err != nil {
		return nil, err
	}

	// Change mode=rw to mode=ro (the final query parameter).
	uri = uri[:len(uri)-1] + "o"
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}

	return &Store{
		log: log,

		BuildType: sqliteBuildType,

		ro: ro,
		rw: rw,
	}, nil
}

var inMemNameCounter uint32

// NewInMemStore returns a store backed by an in-memory database,
// useful for tests that want real SQL behavior without disk I/O.
func NewInMemStore(ctx context.Context, log *slog.Logger) (*Store, error) {
	dbName := fmt.Sprintf("db%d", atomic.AddUint32(&inMemNameCounter, 1))

	// A unique file name so multiple connections in one process
	// can share the same in-memory database; the cache must be
	// shared for the same reason.
	uri := "file:" + dbName + "?mode=memory&cache=shared"

	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	// More than one open connection gives frequent
	// "table is locked" errors.
	rw.SetMaxOpenConns(1)

	if err := migrate(ctx, rw); err != nil {
		return nil, err
	}

	// The drivers cannot mark an in-memory connection read-only,
	// so the "read-only" pool is just a second plain connection.
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening second database connection: %w", err)
	}

	return &Store{
		log: log,

		BuildType: sqliteBuildType,

		ro: ro,
		rw: rw,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS archived_games(
  hash BLOB NOT NULL PRIMARY KEY,
  data BLOB NOT NULL,
  saved_at INTEGER NOT NULL DEFAULT (unixepoch())
);`,
	); err != nil {
		return fmt.Errorf("error creating archived_games table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	return errors.Join(s.ro.Close(), s.rw.Close())
}

// SaveBlob implements [gcstore.ArchiveStore].
// The key is content-addressed, so resaving an existing hash
// is a no-op rather than a conflict.
func (s *Store) SaveBlob(ctx context.Context, hash, data []byte) error {
	if len(hash) != blobHashSize {
		return fmt.Errorf("blob hash must be %d bytes, got %d", blobHashSize, len(hash))
	}

	if _, err := s.rw.ExecContext(
		ctx,
		`INSERT INTO archived_games(hash, data) VALUES ($1, $2)
ON CONFLICT(hash) DO NOTHING;`,
		hash, data,
	); err != nil {
		return fmt.Errorf("failed to save archived game: %w", err)
	}

	s.log.Info("Archived finished game", "hash", fmt.Sprintf("%x", hash))
	return nil
}

// LoadBlob implements [gcstore.ArchiveStore].
func (s *Store) LoadBlob(ctx context.Context, hash []byte) ([]byte, error) {
	if len(hash) != blobHashSize {
		return nil, fmt.Errorf("blob hash must be %d bytes, got %d", blobHashSize, len(hash))
	}

	var data []byte
	if err := s.ro.QueryRowContext(
		ctx,
		`SELECT data FROM archived_games WHERE hash = $1;`,
		hash,
	).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gcstore.UnknownBlobError{Hash: hash}
		}
		return nil, fmt.Errorf("failed to load archived game: %w", err)
	}

	return data, nil
}
