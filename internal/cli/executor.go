package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"shaderwrangler/internal/compiler"
	"shaderwrangler/internal/core"
	"shaderwrangler/internal/ctxlog"
	"shaderwrangler/internal/history"
	"shaderwrangler/internal/metrics"
	"shaderwrangler/internal/pipeline"
	"shaderwrangler/internal/trace"
)

// Result is the outcome of Execute.
type Result struct {
	ExitCode  int
	Report    *pipeline.Report
	RunID     string
	TraceHash string
}

// Options carries the collaborators of Execute that tests replace.
type Options struct {
	// Factory defaults to a process compiler built from the configuration.
	Factory core.CompilerFactory

	// Logs defaults to os.Stderr.
	Logs io.Writer
}

// Execute runs inv with the configured external compiler.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	return ExecuteWithOptions(ctx, inv, Options{})
}

// ExecuteWithOptions maps a canonical Invocation to a pipeline run.
//
// Responsibilities:
//   - build the logger and attach it to ctx
//   - keep run history, the trace file and the metrics textfile when enabled
//   - translate the run outcome to a semantic exit code, also on panic
//
// History, trace and metrics are best-effort: their failures are logged and
// never change the exit code.
func ExecuteWithOptions(ctx context.Context, inv Invocation, opts Options) (res Result, execErr error) {
	res.ExitCode = ExitInternalError
	cfg := inv.Config
	if cfg == nil {
		return res, fmt.Errorf("invocation has no configuration")
	}
	if opts.Logs == nil {
		opts.Logs = os.Stderr
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, opts.Logs)
	ctx = ctxlog.WithLogger(ctx, logger)

	in, err := cfg.Instructions()
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	in.DryRun = inv.DryRun

	factory := opts.Factory
	if factory == nil {
		factory = compiler.NewFactory(cfg.CompilerOptions())
	}

	hist := startHistory(logger, cfg.HistoryDir, in)
	res.RunID = hist.run.RunID

	var recorder *trace.Recorder
	if cfg.TracePath != "" {
		recorder = trace.NewRecorder()
	}
	var collector *metrics.Collector
	if cfg.MetricsFile != "" {
		collector = metrics.NewCollector()
	}

	p := pipeline.New(in, factory)
	p.Metrics = collector
	if recorder != nil {
		p.Trace = recorder
	}

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
			hist.finish(logger, res.Report, execErr)
		}
	}()

	rep, runErr := p.Run(ctx)
	res.Report = rep

	if recorder != nil {
		tr := recorder.Trace(in.SearchRoot)
		logger.Debug("trace recorded",
			"stale", recorder.Count(trace.EventCandidateStale),
			"compiled", recorder.Count(trace.EventCandidateCompiled),
			"failed", recorder.Count(trace.EventCandidateFailed),
			"written", recorder.Count(trace.EventOutputWritten))
		if err := tr.WriteFile(cfg.TracePath); err != nil {
			logger.Warn("writing trace", "path", cfg.TracePath, "err", err)
		} else if h, err := tr.Hash(); err == nil {
			res.TraceHash = h
			hist.run.TraceHash = h
		}
	}
	if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("writing metrics", "path", cfg.MetricsFile, "err", err)
	}
	hist.finish(logger, rep, runErr)

	res.ExitCode = ExitCode(runErr)
	return res, runErr
}

type historyRun struct {
	recorder *history.Recorder
	run      history.Run
}

func startHistory(logger *slog.Logger, dir string, in pipeline.Instructions) *historyRun {
	h := &historyRun{}
	if dir == "" {
		return h
	}
	store, err := history.NewStore(dir)
	if err != nil {
		logger.Warn("run history disabled", "dir", dir, "err", err)
		return h
	}
	kinds := make([]string, len(in.Kinds))
	for i, k := range in.Kinds {
		kinds[i] = k.String()
	}
	rec := &history.Recorder{Store: store}
	run, err := rec.StartRun(history.Run{
		SearchRoot: in.SearchRoot,
		OutputRoot: in.OutputRoot,
		Kinds:      kinds,
		DryRun:     in.DryRun,
	})
	if err != nil {
		logger.Warn("run history disabled", "dir", dir, "err", err)
		return h
	}
	h.recorder = rec
	h.run = run
	return h
}

func (h *historyRun) finish(logger *slog.Logger, rep *pipeline.Report, runErr error) {
	if h.recorder == nil {
		return
	}
	if rep != nil {
		h.run.Discovered = len(rep.Discovered)
		h.run.Stale = len(rep.Stale)
		h.run.Failed = len(rep.Failures)
		h.run.Compiled = len(rep.Outcomes) - len(rep.Failures)
		h.run.Written = len(rep.Written)
	}
	if err := h.recorder.FinishRun(h.run, runErr); err != nil {
		logger.Warn("recording run history", "run_id", h.run.RunID, "err", err)
	}
	h.recorder = nil
}
