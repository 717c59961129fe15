package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shaderwrangler/internal/core"
)

func TestProcessCompiler_SourceOnStdinBinaryOnStdout(t *testing.T) {
	c, err := New(Options{Command: "cat"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Compile(context.Background(), "void main() {}", core.KindVertex, "a.vert", "main")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if string(out) != "void main() {}" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestProcessCompiler_ExpandsPlaceholders(t *testing.T) {
	c, err := New(Options{Command: `sh -c 'printf "%s|%s|%s|%s|%s" "$0" "$1" "$2" "$3" "$4"' {stage} {entry} {id} {kind} {ext}`})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Compile(context.Background(), "", core.KindFragment, "dir with space/b.frag", "main")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := "fragment|main|dir with space/b.frag|fragment|frag"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestProcessCompiler_NonZeroExitCarriesStderr(t *testing.T) {
	c, err := New(Options{Command: `sh -c 'echo "b.frag:3: syntax error" >&2; exit 2'`})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.Compile(context.Background(), "x", core.KindFragment, "b.frag", "main")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 2 || !strings.Contains(exitErr.Stderr, "syntax error") {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
}

func TestProcessCompiler_EnvIsPassed(t *testing.T) {
	c, err := New(Options{Command: `sh -c 'printf "%s" "$WRANGLER_TEST"'`, Env: map[string]string{"WRANGLER_TEST": "yes"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Compile(context.Background(), "", core.KindCompute, "c.comp", "main")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if string(out) != "yes" {
		t.Fatalf("expected env to be visible, got %q", out)
	}
}

func TestProcessCompiler_CancelKillsChild(t *testing.T) {
	c, err := New(Options{Command: "sleep 10"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.Compile(ctx, "", core.KindVertex, "a.vert", "main")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("child was not killed promptly")
	}
}

func TestNewFactory_MissingExecutableFailsInit(t *testing.T) {
	factory := NewFactory(Options{Command: "definitely-not-a-shader-compiler-7f3a"})
	if _, err := factory(context.Background()); err == nil {
		t.Fatalf("expected init error")
	}

	batch := core.NewBatchCompiler(factory)
	_, err := batch.Compile(context.Background(), []core.Candidate{{Path: "a.vert", Kind: core.KindVertex}})
	if !errors.Is(err, core.ErrCompilerInit) {
		t.Fatalf("expected ErrCompilerInit, got %v", err)
	}
}

func TestNew_RejectsUnbalancedQuotes(t *testing.T) {
	if _, err := New(Options{Command: `glslc "unterminated`}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNew_DefaultsToGlslc(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		return // glslc is installed
	}
	if !strings.Contains(err.Error(), "glslc") {
		t.Fatalf("expected error to name glslc, got %v", err)
	}
}
