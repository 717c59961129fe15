package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputWriter persists compiled binaries into a tree mirroring the sources.
//
// Layout:
//
//	<SearchRoot>/dir/name.vert  ->  <OutputRoot>/dir/name.spv_vert
type OutputWriter struct {
	SearchRoot string
	OutputRoot string
}

// NewOutputWriter creates an OutputWriter for the given roots.
func NewOutputWriter(searchRoot, outputRoot string) *OutputWriter {
	return &OutputWriter{SearchRoot: searchRoot, OutputRoot: outputRoot}
}

// Destination returns the output path for a candidate.
//
// The last extension of the source is replaced by the kind's output
// extension, which derives from the kind and not from the search extension.
func (w *OutputWriter) Destination(c Candidate) (string, error) {
	ext, err := c.Kind.OutputExtension()
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(w.SearchRoot, c.Path)
	if err != nil {
		return "", wrapf(ErrWrite, c.Path, err, "not under search root %s", w.SearchRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", wrapf(ErrWrite, c.Path, nil, "not under search root %s", w.SearchRoot)
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(w.OutputRoot, stem+"."+ext), nil
}

// Write stores a successful outcome, creating missing parent directories and
// replacing any existing file. It returns the destination path.
func (w *OutputWriter) Write(o Outcome) (string, error) {
	if !o.OK() {
		return "", wrapf(ErrWrite, o.Candidate.Path, o.Err, "outcome is a failure")
	}
	dest, err := w.Destination(o.Candidate)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &WranglerError{Kind: ErrWrite, Path: dest, Err: err}
	}
	if err := writeFileAtomic(dest, o.Binary, 0o644); err != nil {
		return "", &WranglerError{Kind: ErrWrite, Path: dest, Err: err}
	}
	return dest, nil
}

// writeFileAtomic writes via a sibling temp file and rename, so a crash never
// leaves a truncated output at the canonical path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
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

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}
