package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shaderwrangler/internal/core"
	"shaderwrangler/internal/ctxlog"
	"shaderwrangler/internal/metrics"
	"shaderwrangler/internal/record"
	"shaderwrangler/internal/trace"
)

// Instructions is the configuration of a single run.
type Instructions struct {
	Kinds      []core.Kind
	SearchRoot string
	OutputRoot string
	RecordPath string

	// FailOnCompileError turns per-candidate compile failures into a
	// *core.BatchError once every candidate has been attempted.
	FailOnCompileError bool

	// Extensions overrides the search extension per kind.
	Extensions map[core.Kind]string

	// EntryPoint defaults to core.DefaultEntryPoint.
	EntryPoint string

	// Concurrency > 1 compiles stale candidates in parallel.
	Concurrency int

	// DryRun stops after filtering. The compiler is never initialised and
	// the record is never written.
	DryRun bool
}

// Pipeline runs Instructions against a compiler and a record store.
type Pipeline struct {
	Instructions

	Factory core.CompilerFactory

	// Store defaults to record.Open(RecordPath) and is then closed by Run.
	Store record.Store

	Trace   trace.Sink
	Metrics *metrics.Collector
}

// New creates a Pipeline with the default store and no observers.
func New(in Instructions, factory core.CompilerFactory) *Pipeline {
	return &Pipeline{Instructions: in, Factory: factory}
}

// Report describes what a run did. It is returned even when Run fails.
type Report struct {
	State      State
	Discovered []core.Candidate
	Stale      []core.Candidate
	Outcomes   []core.Outcome

	// Written lists destination paths in write order.
	Written []string

	// Failures holds the per-candidate compile failures.
	Failures []error

	// Persisted is true once the record has been saved.
	Persisted bool
}

// Run executes one run.
//
// Configuration, discovery, stat and compiler initialisation failures stop
// the run before the record is written. Once outputs are being written the
// record is persisted regardless of what fails afterwards, and a write error
// is returned only after persistence.
//
// A cancelled ctx always fails the run with an error wrapping ctx.Err(). A
// cancellation seen after compiling skips writing but still persists.
func (p *Pipeline) Run(ctx context.Context) (rep *Report, err error) {
	start := time.Now()
	log := ctxlog.FromContext(ctx)
	rep = &Report{State: StatePending}
	defer func() {
		p.Metrics.Finish(string(rep.State), time.Since(start))
	}()

	fail := func(cause error) error {
		if terr := Transition(&rep.State, rep.State, StateFailed); terr != nil {
			return errors.Join(cause, terr)
		}
		return cause
	}

	store, closeStore, err := p.openStore()
	if err != nil {
		return rep, fail(err)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			log.Warn("closing change record", "path", p.RecordPath, "err", cerr)
		}
	}()

	rec, lerr := store.Load(ctx)
	if lerr != nil {
		log.Debug("ignoring unreadable change record", "path", p.RecordPath, "err", lerr)
	}
	if rec == nil {
		rec = core.NewRecord()
	}
	if err := Transition(&rep.State, StatePending, StateLoaded); err != nil {
		return rep, err
	}
	log.Debug("change record loaded", "path", p.RecordPath, "entries", rec.Len())

	discoverer := core.NewDiscoverer()
	discoverer.Extensions = p.Extensions
	rep.Discovered, err = discoverer.Discover(p.SearchRoot, p.Kinds)
	if err != nil {
		return rep, fail(err)
	}
	for _, c := range rep.Discovered {
		p.Metrics.Discovered(c.Kind.String())
	}
	if err := Transition(&rep.State, StateLoaded, StateDiscovered); err != nil {
		return rep, err
	}
	log.Info("discovered candidates", "root", p.SearchRoot, "count", len(rep.Discovered))

	rep.Stale, err = core.FilterStale(rep.Discovered, rec)
	if err != nil {
		return rep, fail(err)
	}
	p.traceFilter(rec, rep.Discovered, rep.Stale)
	if err := Transition(&rep.State, StateDiscovered, StateFiltered); err != nil {
		return rep, err
	}
	log.Info("filtered stale candidates", "stale", len(rep.Stale), "up_to_date", len(rep.Discovered)-len(rep.Stale))

	if err := ctx.Err(); err != nil {
		return rep, fail(interrupted(err))
	}
	if len(rep.Stale) == 0 || p.DryRun {
		return rep, Transition(&rep.State, StateFiltered, StateDone)
	}

	if err := Transition(&rep.State, StateFiltered, StateCompiling); err != nil {
		return rep, err
	}
	batch := core.NewBatchCompiler(p.Factory)
	batch.EntryPoint = p.EntryPoint
	batch.Concurrency = p.Concurrency
	batch.Observe = p.observe(log)
	rep.Outcomes, err = batch.Compile(ctx, rep.Stale)
	if err != nil {
		return rep, fail(err)
	}
	rep.Failures = core.Failures(rep.Outcomes)

	if err := Transition(&rep.State, StateCompiling, StateFinalizing); err != nil {
		return rep, err
	}

	// An interrupted batch writes nothing; the record is still persisted.
	var writeErr error
	if cerr := ctx.Err(); cerr != nil {
		writeErr = interrupted(cerr)
	} else {
		writeErr = p.writeOutputs(rep, rec)
	}

	if serr := store.Save(context.WithoutCancel(ctx), rec); serr != nil {
		writeErr = errors.Join(writeErr, &core.WranglerError{Kind: core.ErrRecord, Path: p.RecordPath, Err: serr})
	} else {
		rep.Persisted = true
		log.Debug("change record saved", "path", p.RecordPath, "entries", rec.Len())
	}
	if writeErr == nil && ctx.Err() != nil {
		writeErr = interrupted(ctx.Err())
	}
	if writeErr != nil {
		return rep, fail(writeErr)
	}

	if len(rep.Failures) > 0 {
		if p.FailOnCompileError {
			return rep, fail(&core.BatchError{Failures: rep.Failures})
		}
		log.Warn("some candidates failed to compile and stay stale", "failed", len(rep.Failures))
	}
	log.Info("run finished", "compiled", len(rep.Outcomes)-len(rep.Failures), "written", len(rep.Written))
	return rep, Transition(&rep.State, StateFinalizing, StateDone)
}

func interrupted(err error) error {
	return fmt.Errorf("run interrupted: %w", err)
}

func (p *Pipeline) openStore() (record.Store, func() error, error) {
	if p.Store != nil {
		return p.Store, func() error { return nil }, nil
	}
	s, err := record.Open(p.RecordPath)
	if err != nil {
		return nil, nil, &core.WranglerError{Kind: core.ErrRecord, Path: p.RecordPath, Err: err}
	}
	return s, s.Close, nil
}

// writeOutputs writes every success in order and logs it in the record. The
// first write or log failure stops the loop.
//
// Entries are per candidate, so when several kinds share a file a failing
// kind stays stale while its siblings are logged.
func (p *Pipeline) writeOutputs(rep *Report, rec *core.Record) error {
	writer := core.NewOutputWriter(p.SearchRoot, p.OutputRoot)
	for _, o := range rep.Outcomes {
		if !o.OK() {
			continue
		}
		dest, err := writer.Write(o)
		if err != nil {
			return err
		}
		rep.Written = append(rep.Written, dest)
		p.Metrics.Written(o.Candidate.Kind.String())
		trace.SafeRecord(p.Trace, trace.TraceEvent{
			Kind:       trace.EventOutputWritten,
			Path:       o.Candidate.Path,
			ShaderKind: o.Candidate.Kind.String(),
			Output:     dest,
		})
		if err := rec.LogCandidate(o.Candidate); err != nil {
			return fmt.Errorf("log %s: %w", o.Candidate.Path, err)
		}
	}
	return nil
}

func (p *Pipeline) traceFilter(rec *core.Record, discovered, stale []core.Candidate) {
	isStale := make(map[core.Candidate]bool, len(stale))
	for _, c := range stale {
		isStale[c] = true
		p.Metrics.Stale(c.Kind.String())
	}
	for _, c := range discovered {
		ev := trace.TraceEvent{Kind: trace.EventCandidateUpToDate, Path: c.Path, ShaderKind: c.Kind.String()}
		if isStale[c] {
			ev.Kind = trace.EventCandidateStale
			ev.Reason = trace.ReasonModified
			if _, ok := rec.Lookup(c.RecordKey()); !ok {
				ev.Reason = trace.ReasonUnrecorded
			}
		}
		trace.SafeRecord(p.Trace, ev)
	}
}

func (p *Pipeline) observe(log *slog.Logger) func(core.Outcome) {
	return func(o core.Outcome) {
		kind := o.Candidate.Kind.String()
		ev := trace.TraceEvent{Path: o.Candidate.Path, ShaderKind: kind}
		if o.OK() {
			ev.Kind = trace.EventCandidateCompiled
			p.Metrics.Compiled(kind)
			log.Debug("compiled", "path", o.Candidate.Path, "kind", kind, "bytes", len(o.Binary))
		} else {
			ev.Kind = trace.EventCandidateFailed
			ev.Reason = trace.ReasonCompileFailed
			if errors.Is(o.Err, core.ErrRead) {
				ev.Reason = trace.ReasonReadFailed
			}
			p.Metrics.Failed(kind)
			log.Warn("compilation failed", "path", o.Candidate.Path, "kind", kind, "err", o.Err)
		}
		trace.SafeRecord(p.Trace, ev)
	}
}
