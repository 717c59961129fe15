// Package compiler runs an external shader compiler as a child process.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/google/shlex"

	"shaderwrangler/internal/core"
)

// DefaultCommand compiles GLSL from stdin to SPIR-V on stdout.
const DefaultCommand = "glslc -fshader-stage={stage} -fentry-point={entry} -o - -"

// Options configures a ProcessCompiler.
//
// Command is split with shell quoting rules. Each argument may contain the
// placeholders {stage}, {entry}, {id}, {kind} and {ext}; they are expanded
// per candidate, never passed through a shell.
type Options struct {
	Command string

	// Dir is the working directory of the child. Empty means inherit.
	Dir string

	// Env is added to the inherited environment.
	Env map[string]string
}

// ProcessCompiler implements core.Compiler by running one process per
// candidate. It holds no mutable state and is safe for concurrent use.
type ProcessCompiler struct {
	path string
	args []string
	dir  string
	env  []string
}

// NewFactory returns a core.CompilerFactory that resolves the executable
// once, at initialisation.
func NewFactory(opts Options) core.CompilerFactory {
	return func(ctx context.Context) (core.Compiler, error) {
		return New(opts)
	}
}

// New parses the command and resolves the executable on PATH.
func New(opts Options) (*ProcessCompiler, error) {
	command := opts.Command
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse compiler command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("compiler command is empty")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("resolve compiler %q: %w", argv[0], err)
	}
	return &ProcessCompiler{
		path: path,
		args: argv[1:],
		dir:  opts.Dir,
		env:  buildEnv(opts.Env),
	}, nil
}

// Path returns the resolved executable.
func (p *ProcessCompiler) Path() string { return p.path }

// Compile feeds source on stdin and returns stdout. A non-zero exit is an
// error carrying the child's stderr.
func (p *ProcessCompiler) Compile(ctx context.Context, source string, kind core.Kind, identifier, entryPoint string) ([]byte, error) {
	args, err := p.expand(kind, identifier, entryPoint)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(p.path, args...)
	cmd.Dir = p.dir
	cmd.Env = p.env
	cmd.Stdin = strings.NewReader(source)

	// Own process group so a cancelled run kills the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start compiler: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("compilation cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, fmt.Errorf("failed to run compiler: %w", err)
	}
	return stdout.Bytes(), nil
}

func (p *ProcessCompiler) expand(kind core.Kind, identifier, entryPoint string) ([]string, error) {
	ext, err := kind.Extension()
	if err != nil {
		return nil, err
	}
	r := strings.NewReplacer(
		"{stage}", kind.Stage(),
		"{entry}", entryPoint,
		"{id}", identifier,
		"{kind}", kind.String(),
		"{ext}", ext,
	)
	out := make([]string, len(p.args))
	for i, a := range p.args {
		out[i] = r.Replace(a)
	}
	return out, nil
}

// ExitError reports a compiler process that exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("compiler exited with status %d", e.Code)
	}
	return fmt.Sprintf("compiler exited with status %d: %s", e.Code, e.Stderr)
}

// buildEnv appends extra to the inherited environment in sorted key order.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
