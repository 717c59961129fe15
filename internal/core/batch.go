package core

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"
)

// DefaultEntryPoint is the entry point passed to the compiler for every
// candidate.
const DefaultEntryPoint = "main"

// Compiler translates shader source text into a binary payload.
//
// identifier is a human-readable name for diagnostics (the candidate path).
// When BatchCompiler.Concurrency > 1, Compile is called from several
// goroutines and must be safe for concurrent use.
type Compiler interface {
	Compile(ctx context.Context, source string, kind Kind, identifier, entryPoint string) ([]byte, error)
}

// CompilerFactory performs the once-per-batch compiler setup.
//
// A failure means the environment is unusable, not that a file is bad.
type CompilerFactory func(ctx context.Context) (Compiler, error)

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source string, kind Kind, identifier, entryPoint string) ([]byte, error)

func (f CompilerFunc) Compile(ctx context.Context, source string, kind Kind, identifier, entryPoint string) ([]byte, error) {
	return f(ctx, source, kind, identifier, entryPoint)
}

// BatchCompiler compiles a set of candidates, one outcome per candidate.
type BatchCompiler struct {
	Factory CompilerFactory

	// EntryPoint defaults to DefaultEntryPoint.
	EntryPoint string

	// Concurrency bounds the number of candidates compiled at once.
	// Values <= 1 compile sequentially.
	Concurrency int

	// Observe, if set, is called for each outcome once it is known.
	// With Concurrency > 1 it may be called from several goroutines.
	Observe func(Outcome)
}

// NewBatchCompiler creates a sequential BatchCompiler.
func NewBatchCompiler(factory CompilerFactory) *BatchCompiler {
	return &BatchCompiler{Factory: factory, EntryPoint: DefaultEntryPoint}
}

// Compile initialises the compiler once and compiles every candidate.
//
// The returned outcomes correspond index-for-index to candidates. A failing
// candidate never prevents the others from being attempted. The only error
// returned is an initialisation failure, which happens before any candidate
// is touched.
func (b *BatchCompiler) Compile(ctx context.Context, candidates []Candidate) ([]Outcome, error) {
	if b.Factory == nil {
		return nil, &WranglerError{Kind: ErrCompilerInit, Msg: "no compiler factory"}
	}
	compiler, err := b.Factory(ctx)
	if err != nil {
		return nil, &WranglerError{Kind: ErrCompilerInit, Err: err}
	}
	if compiler == nil {
		return nil, &WranglerError{Kind: ErrCompilerInit, Msg: "factory returned nil compiler"}
	}

	outcomes := make([]Outcome, len(candidates))
	if b.Concurrency <= 1 {
		for i, c := range candidates {
			outcomes[i] = b.compileOne(ctx, compiler, c)
		}
		return outcomes, nil
	}

	// Workers never return an error, so the group never cancels siblings.
	var g errgroup.Group
	g.SetLimit(b.Concurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			outcomes[i] = b.compileOne(ctx, compiler, c)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

func (b *BatchCompiler) compileOne(ctx context.Context, compiler Compiler, c Candidate) Outcome {
	out := b.run(ctx, compiler, c)
	if b.Observe != nil {
		b.Observe(out)
	}
	return out
}

func (b *BatchCompiler) run(ctx context.Context, compiler Compiler, c Candidate) Outcome {
	source, err := os.ReadFile(c.Path)
	if err != nil {
		return Outcome{Candidate: c, Err: &CompileError{Candidate: c, Step: stepRead, Err: err}}
	}

	entry := b.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	binary, err := compiler.Compile(ctx, string(source), c.Kind, c.Path, entry)
	if err != nil {
		return Outcome{Candidate: c, Err: &CompileError{Candidate: c, Step: stepCompile, Err: err}}
	}
	if binary == nil {
		binary = []byte{}
	}
	return Outcome{Candidate: c, Binary: binary}
}

// Failures returns the errors of the failed outcomes, in order.
func Failures(outcomes []Outcome) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// IsConfigError reports whether err stems from invalid run configuration
// rather than the environment or the sources.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnsupportedKind) || errors.Is(err, ErrBadPattern)
}
