package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"shaderwrangler/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS modified_times (
	path        TEXT PRIMARY KEY,
	modified_ns INTEGER NOT NULL
)`

// SQLiteStore keeps the ledger in a sqlite database. Saving upserts every
// entry in one transaction and never deletes rows.
//
// Nothing touches the disk until Save: Load reads through a read-only handle
// and treats a missing database as an empty ledger. A database sqlite
// reports as corrupt is discarded by the next Save and rebuilt.
type SQLiteStore struct {
	path string

	db      *sql.DB
	corrupt bool
}

// OpenSQLite prepares a store for the database at path without opening it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("record path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// isCorrupt reports whether err is sqlite refusing the file itself.
func isCorrupt(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrNotADB || serr.Code == sqlite3.ErrCorrupt
}

func (s *SQLiteStore) Load(ctx context.Context) (*core.Record, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.NewRecord(), nil
		}
		return core.NewRecord(), fmt.Errorf("stat record: %w", err)
	}

	ro, err := sql.Open("sqlite3", "file:"+s.path+"?mode=ro")
	if err != nil {
		return core.NewRecord(), err
	}
	defer ro.Close()

	entries, err := readEntries(ctx, ro)
	if err != nil {
		s.corrupt = isCorrupt(err)
		return core.NewRecord(), err
	}
	return core.RecordFrom(entries), nil
}

func readEntries(ctx context.Context, db *sql.DB) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, modified_ns FROM modified_times`)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var p string
		var ns int64
		if err := rows.Scan(&p, &ns); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entries[p] = time.Unix(0, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record: %w", err)
	}
	return entries, nil
}

// writable returns the read-write handle, creating the directory and schema
// on first use. A corrupt database is removed and created again once.
func (s *SQLiteStore) writable(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if s.corrupt {
		if err := s.discard(); err != nil {
			return nil, err
		}
	}
	db, err := s.create(ctx)
	if isCorrupt(err) {
		if derr := s.discard(); derr != nil {
			return nil, derr
		}
		db, err = s.create(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare record schema: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *SQLiteStore) create(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, err
	}
	// One writer per run; a single connection keeps sqlite locking simple.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s *SQLiteStore) discard() error {
	for _, p := range []string{s.path, s.path + "-journal", s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("discard corrupt record: %w", err)
		}
	}
	s.corrupt = false
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *core.Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	db, err := s.writable(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modified_times (path, modified_ns) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET modified_ns = excluded.modified_ns`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range r.Paths() {
		t, _ := r.Lookup(p)
		if _, err := stmt.ExecContext(ctx, p, t.UnixNano()); err != nil {
			return fmt.Errorf("upsert %s: %w", p, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
