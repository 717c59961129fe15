package history

import (
	"errors"

	"shaderwrangler/internal/config"
	"shaderwrangler/internal/core"
)

type classification struct {
	sentinel  error
	class     FailureClass
	code      string
	retryable bool
}

// First match wins; a joined write and persist error is a write failure.
var classifications = []classification{
	{config.ErrInvalid, FailureClassConfiguration, "InvalidConfig", false},
	{core.ErrUnsupportedKind, FailureClassConfiguration, "UnsupportedKind", false},
	{core.ErrBadPattern, FailureClassConfiguration, "BadPattern", false},
	{core.ErrCompilerInit, FailureClassCompiler, "CompilerInit", false},
	{core.ErrWrite, FailureClassWrite, "WriteFailed", true},
	{core.ErrRecord, FailureClassWrite, "RecordPersistFailed", true},
	{core.ErrTraversal, FailureClassDiscovery, "Traversal", true},
	{core.ErrStat, FailureClassDiscovery, "StatFailed", true},
}

// FailureFromError classifies err into the failure taxonomy.
func FailureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var batch *core.BatchError
	if errors.As(err, &batch) && batch != nil {
		f := Failure{
			FailureClass: FailureClassBatch,
			ErrorCode:    "BatchFailed",
			ErrorMessage: err.Error(),
		}
		for _, fe := range batch.Failures {
			var ce *core.CompileError
			if errors.As(fe, &ce) {
				f.Candidates = append(f.Candidates, ce.Candidate.Path)
			}
		}
		if len(f.Candidates) == 0 {
			f.Candidates = []string{"unknown"}
		}
		return f, nil
	}

	for _, c := range classifications {
		if !errors.Is(err, c.sentinel) {
			continue
		}
		f := Failure{
			FailureClass: c.class,
			ErrorCode:    c.code,
			ErrorMessage: err.Error(),
			Retryable:    c.retryable,
		}
		var we *core.WranglerError
		if errors.As(err, &we) && we.Path != "" {
			p := we.Path
			f.Path = &p
		}
		return f, nil
	}

	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
		Retryable:    true,
	}, nil
}
