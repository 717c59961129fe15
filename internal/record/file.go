package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shaderwrangler/internal/core"
)

const fileFormatVersion = 1

// fileLedger is the on-disk shape. Times are stored as Unix nanoseconds so
// that decoding yields exactly the instant that was encoded.
type fileLedger struct {
	Version       int              `msgpack:"version"`
	ModifiedTimes map[string]int64 `msgpack:"modified_times"`
}

// FileStore keeps the ledger in a single msgpack file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("record path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the ledger location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (*core.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.NewRecord(), nil
		}
		return core.NewRecord(), fmt.Errorf("read record: %w", err)
	}

	var ledger fileLedger
	if err := msgpack.Unmarshal(data, &ledger); err != nil {
		return core.NewRecord(), fmt.Errorf("decode record: %w", err)
	}
	if ledger.Version != fileFormatVersion {
		return core.NewRecord(), fmt.Errorf("decode record: unsupported version %d", ledger.Version)
	}

	entries := make(map[string]time.Time, len(ledger.ModifiedTimes))
	for p, ns := range ledger.ModifiedTimes {
		entries[p] = time.Unix(0, ns)
	}
	return core.RecordFrom(entries), nil
}

func (s *FileStore) Save(_ context.Context, r *core.Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	ledger := fileLedger{
		Version:       fileFormatVersion,
		ModifiedTimes: make(map[string]int64, r.Len()),
	}
	for p, t := range r.Entries() {
		ledger.ModifiedTimes[p] = t.UnixNano()
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&ledger); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := writeFileAtomicDurable(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// writeFileAtomicDurable writes data next to path, syncs it, renames it over
// path and syncs the directory. Readers see either the old or the new ledger.
func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
