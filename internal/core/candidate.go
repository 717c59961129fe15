package core

import (
	"path/filepath"
	"strings"
)

// Candidate is a source file found during discovery, paired with the kind it
// was found under. A file matched under two kinds yields two candidates.
type Candidate struct {
	// Path is the file location as produced by discovery: rooted at the
	// search root exactly as the caller spelled it.
	Path string

	Kind Kind
}

// RecordKey is the change record entry tracking this candidate.
//
// A file found through its kind's canonical extension is tracked under its
// path. A file found through an extension override is tracked under
// "<path>#<kind>", so kinds sharing one file each keep their own entry. The
// two forms never collide: a bare key always ends in a canonical extension.
func (c Candidate) RecordKey() string {
	if ext, err := c.Kind.Extension(); err == nil && strings.TrimPrefix(filepath.Ext(c.Path), ".") == ext {
		return c.Path
	}
	return c.Path + "#" + c.Kind.String()
}

// Outcome is the result of compiling a single candidate.
//
// Exactly one of Binary or Err is meaningful: a failed candidate never carries
// a partial artifact.
type Outcome struct {
	Candidate Candidate

	// Binary is the compiled payload when Err is nil.
	Binary []byte

	// Err is a *CompileError when compilation of this candidate failed.
	Err error
}

// OK reports whether the candidate compiled.
func (o Outcome) OK() bool { return o.Err == nil }
