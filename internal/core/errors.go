package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedKind = errors.New("kind not supported by wrangler")
	ErrBadPattern      = errors.New("bad glob pattern")
	ErrTraversal       = errors.New("error while traversing glob results")
	ErrStat            = errors.New("cannot read modification time")
	ErrCompilerInit    = errors.New("error initializing the compiler")
	ErrRead            = errors.New("error reading source")
	ErrCompilation     = errors.New("error compiling file")
	ErrWrite           = errors.New("error writing output")
	ErrRecord          = errors.New("error persisting change record")
)

// WranglerError wraps a run-level failure with the sentinel that classifies it.
//
// errors.Is matches both Kind and the underlying Err.
type WranglerError struct {
	Kind error
	Path string
	Msg  string
	Err  error
}

func (e *WranglerError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WranglerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CompileError is the failure outcome of a single candidate. Step is "read"
// or "compile".
type CompileError struct {
	Candidate Candidate
	Step      string
	Err       error
}

func (e *CompileError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Step, e.Candidate.Path, e.Candidate.Kind, e.Err)
}

func (e *CompileError) Unwrap() []error {
	sentinel := ErrCompilation
	if e.Step == stepRead {
		sentinel = ErrRead
	}
	return []error{sentinel, e.Err}
}

const (
	stepRead    = "read"
	stepCompile = "compile"
)

// BatchError carries every per-candidate failure of a run whose policy makes
// compilation failures fatal.
type BatchError struct {
	Failures []error
}

func (e *BatchError) Error() string {
	if e == nil {
		return ""
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("encountered errors compiling %d file(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error { return e.Failures }

func wrapf(kind error, path string, err error, format string, args ...any) error {
	return &WranglerError{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...), Err: err}
}
