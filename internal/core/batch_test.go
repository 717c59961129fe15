package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type call struct {
	source     string
	kind       Kind
	identifier string
	entryPoint string
}

// recordingCompiler echoes the source upper-cased and fails for sources
// containing "error".
type recordingCompiler struct {
	mu    sync.Mutex
	calls []call
}

func (c *recordingCompiler) Compile(_ context.Context, source string, kind Kind, identifier, entryPoint string) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call{source, kind, identifier, entryPoint})
	c.mu.Unlock()
	if strings.Contains(source, "error") {
		return nil, fmt.Errorf("syntax error in %s", identifier)
	}
	return []byte(strings.ToUpper(source)), nil
}

func factoryFor(c Compiler, inits *int32) CompilerFactory {
	return func(context.Context) (Compiler, error) {
		if inits != nil {
			atomic.AddInt32(inits, 1)
		}
		return c, nil
	}
}

func TestBatchCompiler_FailureDoesNotAbortSiblings(t *testing.T) {
	root := t.TempDir()
	a := writeSource(t, filepath.Join(root, "a.vert"), "void main(){}")
	b := writeSource(t, filepath.Join(root, "b.frag"), "error here")
	c := writeSource(t, filepath.Join(root, "c.comp"), "compute")

	comp := &recordingCompiler{}
	var inits int32
	batch := NewBatchCompiler(factoryFor(comp, &inits))
	outcomes, err := batch.Compile(context.Background(), []Candidate{
		{Path: a, Kind: KindVertex},
		{Path: b, Kind: KindFragment},
		{Path: c, Kind: KindCompute},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if inits != 1 {
		t.Fatalf("expected exactly one compiler init, got %d", inits)
	}
	if len(outcomes) != 3 || len(comp.calls) != 3 {
		t.Fatalf("expected 3 outcomes and 3 calls, got %d and %d", len(outcomes), len(comp.calls))
	}

	if !outcomes[0].OK() || string(outcomes[0].Binary) != "VOID MAIN(){}" {
		t.Fatalf("unexpected outcome[0]: %+v", outcomes[0])
	}
	if outcomes[1].OK() || outcomes[1].Binary != nil {
		t.Fatalf("expected failure without payload, got %+v", outcomes[1])
	}
	if !errors.Is(outcomes[1].Err, ErrCompilation) {
		t.Fatalf("expected ErrCompilation, got %v", outcomes[1].Err)
	}
	var ce *CompileError
	if !errors.As(outcomes[1].Err, &ce) || ce.Candidate.Path != b {
		t.Fatalf("expected CompileError for %s, got %v", b, outcomes[1].Err)
	}
	if !outcomes[2].OK() {
		t.Fatalf("unexpected outcome[2]: %+v", outcomes[2])
	}

	first := comp.calls[0]
	if first.identifier != a || first.entryPoint != DefaultEntryPoint || first.kind != KindVertex {
		t.Fatalf("unexpected compiler call %+v", first)
	}
	if got := Failures(outcomes); len(got) != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestBatchCompiler_UnreadableSourceIsCandidateFailure(t *testing.T) {
	root := t.TempDir()
	ok := writeSource(t, filepath.Join(root, "ok.vert"), "fine")
	missing := filepath.Join(root, "missing.vert")

	comp := &recordingCompiler{}
	outcomes, err := NewBatchCompiler(factoryFor(comp, nil)).Compile(context.Background(), []Candidate{
		{Path: missing, Kind: KindVertex},
		{Path: ok, Kind: KindVertex},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !errors.Is(outcomes[0].Err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", outcomes[0].Err)
	}
	if !outcomes[1].OK() {
		t.Fatalf("sibling should compile, got %v", outcomes[1].Err)
	}
	if len(comp.calls) != 1 {
		t.Fatalf("compiler must not be called for unreadable source, calls=%d", len(comp.calls))
	}
}

func TestBatchCompiler_InitFailureAbortsBeforeAnyCandidate(t *testing.T) {
	root := t.TempDir()
	a := writeSource(t, filepath.Join(root, "a.vert"), "v")

	batch := NewBatchCompiler(func(context.Context) (Compiler, error) {
		return nil, errors.New("no GPU toolchain")
	})
	outcomes, err := batch.Compile(context.Background(), []Candidate{{Path: a, Kind: KindVertex}})
	if !errors.Is(err, ErrCompilerInit) {
		t.Fatalf("expected ErrCompilerInit, got %v", err)
	}
	if outcomes != nil {
		t.Fatalf("expected no outcomes, got %v", outcomes)
	}
}

func TestBatchCompiler_ParallelPreservesOrder(t *testing.T) {
	root := t.TempDir()
	var candidates []Candidate
	for i := 0; i < 24; i++ {
		content := fmt.Sprintf("shader-%02d", i)
		if i%5 == 0 {
			content = "error " + content
		}
		p := writeSource(t, filepath.Join(root, fmt.Sprintf("s%02d.comp", i)), content)
		candidates = append(candidates, Candidate{Path: p, Kind: KindCompute})
	}

	var observed int32
	batch := NewBatchCompiler(factoryFor(&recordingCompiler{}, nil))
	batch.Concurrency = 4
	batch.Observe = func(Outcome) { atomic.AddInt32(&observed, 1) }

	outcomes, err := batch.Compile(context.Background(), candidates)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if int(observed) != len(candidates) {
		t.Fatalf("observed %d outcomes, want %d", observed, len(candidates))
	}
	for i, o := range outcomes {
		if o.Candidate != candidates[i] {
			t.Fatalf("outcome %d belongs to %s", i, o.Candidate.Path)
		}
		if i%5 == 0 {
			if o.OK() {
				t.Fatalf("outcome %d should have failed", i)
			}
			continue
		}
		if want := fmt.Sprintf("SHADER-%02d", i); string(o.Binary) != want {
			t.Fatalf("outcome %d payload = %q, want %q", i, o.Binary, want)
		}
	}
}
