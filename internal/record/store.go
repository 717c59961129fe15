// Package record persists the change ledger between runs.
//
// Two backends exist:
//   - FileStore: a single msgpack file, written atomically and durably
//   - SQLiteStore: a sqlite database, used when the record path ends in
//     .db, .sqlite or .sqlite3
//
// Both must round-trip timestamps exactly and both treat a missing or
// unreadable ledger as empty.
package record

import (
	"context"
	"path/filepath"
	"strings"

	"shaderwrangler/internal/core"
)

// Store loads and saves a core.Record.
type Store interface {
	// Load returns the persisted record. A missing ledger yields an empty
	// record and no error. A corrupt ledger yields an empty record and a
	// non-nil error that callers are expected to swallow.
	Load(ctx context.Context) (*core.Record, error)

	// Save persists every entry of r. Records only grow during a run, so
	// backends are free to upsert instead of replacing.
	Save(ctx context.Context, r *core.Record) error

	Close() error
}

// Open selects a backend by file extension.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return NewFileStore(path)
	}
}
