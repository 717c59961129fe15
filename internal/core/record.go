package core

import (
	"os"
	"sort"
	"time"
)

// Record is the change ledger: for every path that was successfully compiled
// and written, the source modification time observed at that moment.
// Candidates found through an extension override are keyed by
// Candidate.RecordKey instead of the bare path.
//
// Entries are never pruned. A path that disappears from disk keeps its entry;
// growth is append-only.
type Record struct {
	modified map[string]time.Time
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{modified: make(map[string]time.Time)}
}

// RecordFrom builds a record from an existing mapping. The map is copied.
func RecordFrom(entries map[string]time.Time) *Record {
	r := NewRecord()
	for p, t := range entries {
		r.modified[p] = t
	}
	return r
}

// Lookup returns the recorded modification time of path.
func (r *Record) Lookup(path string) (time.Time, bool) {
	t, ok := r.modified[path]
	return t, ok
}

// Set records t as the last compiled modification time of path.
func (r *Record) Set(path string, t time.Time) {
	r.modified[path] = t
}

// LogCandidate stats the candidate's file and records its current
// modification time under the candidate's record key.
func (r *Record) LogCandidate(c Candidate) error {
	mtime, err := modTime(c.Path)
	if err != nil {
		return err
	}
	r.modified[c.RecordKey()] = mtime
	return nil
}

// Len returns the number of recorded paths.
func (r *Record) Len() int { return len(r.modified) }

// Entries returns a copy of the underlying mapping.
func (r *Record) Entries() map[string]time.Time {
	out := make(map[string]time.Time, len(r.modified))
	for p, t := range r.modified {
		out[p] = t
	}
	return out
}

// Paths returns all recorded paths, sorted.
func (r *Record) Paths() []string {
	paths := make([]string, 0, len(r.modified))
	for p := range r.modified {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, &WranglerError{Kind: ErrStat, Path: path, Err: err}
	}
	return info.ModTime(), nil
}
