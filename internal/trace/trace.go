// Package trace records what a run decided about each candidate.
//
// The trace is observational only and never affects behaviour. Its canonical
// JSON encoding is independent of discovery order and of compile
// concurrency, so two runs that made the same decisions produce the same
// bytes and the same hash.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ExecutionTrace is the canonical record of a single run.
//
// Root is the search root of the run. Events carry no timestamps, error
// strings or other runtime-dependent values.
type ExecutionTrace struct {
	Root   string
	Events []TraceEvent
}

// EventKind is the stable discriminator of TraceEvent. The string values are
// part of the canonical bytes; do not rename.
type EventKind string

const (
	EventCandidateUpToDate EventKind = "CandidateUpToDate"
	EventCandidateStale    EventKind = "CandidateStale"
	EventCandidateCompiled EventKind = "CandidateCompiled"
	EventCandidateFailed   EventKind = "CandidateFailed"
	EventOutputWritten     EventKind = "OutputWritten"
)

// Stable reason codes.
const (
	ReasonUnrecorded    = "Unrecorded"
	ReasonModified      = "Modified"
	ReasonReadFailed    = "ReadFailed"
	ReasonCompileFailed = "CompileFailed"
)

// TraceEvent is a single decision about a candidate.
type TraceEvent struct {
	Kind EventKind

	// Path is the candidate path. Required.
	Path string

	// ShaderKind is the candidate kind name (e.g. "vertex").
	ShaderKind string

	// Reason is a stable reason code.
	Reason string

	// Output is the destination path, for OutputWritten.
	Output string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.Root == "" {
		return errors.New("root is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Path == "" {
			return fmt.Errorf("events[%d].path is required for kind %q", i, e.Kind)
		}
		if e.Kind == EventOutputWritten && e.Output == "" {
			return fmt.Errorf("events[%d].output is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts events by (path, shaderKind, kindOrder, reason, output).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.ShaderKind != b.ShaderKind {
			return a.ShaderKind < b.ShaderKind
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.Output < b.Output
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventCandidateUpToDate:
		return 10
	case EventCandidateStale:
		return 20
	case EventCandidateCompiled:
		return 30
	case EventCandidateFailed:
		return 40
	case EventOutputWritten:
		return 50
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy to avoid mutating the caller's slice.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{Root: t.Root}
	cp.Events = make([]TraceEvent, len(t.Events))
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// WriteFile writes the canonical JSON encoding to path.
func (t ExecutionTrace) WriteFile(path string) error {
	b, err := t.CanonicalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// MarshalJSON fixes field order. It does not sort; see CanonicalJSON.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.Root == "" {
		return nil, errors.New("root is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"root":`)
	rb, _ := json.Marshal(t.Root)
	buf.Write(rb)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField(&buf, "kind", string(e.Kind), true)
	writeField(&buf, "path", e.Path, false)
	writeField(&buf, "shaderKind", e.ShaderKind, false)
	writeField(&buf, "reason", e.Reason, false)
	writeField(&buf, "output", e.Output, false)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name, value string, first bool) {
	if value == "" && !first {
		return
	}
	if !first {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(name)
	buf.WriteString(`":`)
	vb, _ := json.Marshal(value)
	buf.Write(vb)
}
