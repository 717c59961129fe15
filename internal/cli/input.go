package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shaderwrangler/internal/config"
	"shaderwrangler/internal/core"
)

const (
	ExitSuccess           = 0
	ExitRunFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation is the canonical description of a run: the configuration file
// merged with the command-line flags, with relative paths resolved.
type Invocation struct {
	ConfigPath string
	WorkDir    string
	DryRun     bool
	Config     *config.Config
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

type flagValues struct {
	configPath  string
	workDir     string
	searchRoot  string
	outputRoot  string
	recordPath  string
	kinds       []string
	failOnError bool
	concurrency int
	compiler    string
	entryPoint  string
	tracePath   string
	historyDir  string
	metricsFile string
	logLevel    string
	logFormat   string
	dryRun      bool
}

func newCommand(v *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shaderwrangler",
		Short: "Incrementally compile changed shaders into SPIR-V",
		Long: `shaderwrangler discovers shader sources under a search root, compiles the
ones that changed since the last successful run and mirrors the binaries into
an output root. Unchanged sources are skipped using a persistent change record.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.Flags()
	f.StringVarP(&v.configPath, "config", "c", "", "configuration file (.hcl, .toml, .yaml)")
	f.StringVar(&v.workDir, "workdir", "", "absolute directory that relative paths resolve against")
	f.StringVarP(&v.searchRoot, "search-root", "s", "", "directory searched recursively for sources")
	f.StringVarP(&v.outputRoot, "output-root", "o", "", "directory receiving compiled binaries")
	f.StringVar(&v.recordPath, "record", "", "change record file (.db/.sqlite for sqlite, otherwise msgpack)")
	f.StringSliceVarP(&v.kinds, "kinds", "k", nil, "shader kinds to build (vertex,fragment,compute)")
	f.BoolVar(&v.failOnError, "fail-on-error", false, "exit non-zero when any shader fails to compile")
	f.IntVarP(&v.concurrency, "jobs", "j", 0, "number of shaders compiled in parallel")
	f.StringVar(&v.compiler, "compiler", "", "compiler command template")
	f.StringVar(&v.entryPoint, "entry-point", "", "shader entry point")
	f.StringVar(&v.tracePath, "trace", "", "write the canonical run trace to this file")
	f.StringVar(&v.historyDir, "history-dir", "", "keep run history under this directory")
	f.StringVar(&v.metricsFile, "metrics-file", "", "write run metrics in textfile format")
	f.StringVar(&v.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&v.logFormat, "log-format", "", "text or json")
	f.BoolVar(&v.dryRun, "dry-run", false, "report stale shaders without compiling")
	return cmd
}

// ParseInvocation parses args (without argv[0]) into an Invocation.
//
// --help yields an *InvocationError with ExitSuccess whose message is the
// usage text.
func ParseInvocation(args []string) (Invocation, error) {
	var v flagValues
	cmd := newCommand(&v)
	var help bytes.Buffer
	cmd.SetOut(&help)
	cmd.SetErr(&help)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)

	parsed := false
	cmd.RunE = func(*cobra.Command, []string) error {
		parsed = true
		return nil
	}
	if err := cmd.Execute(); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if !parsed {
		return Invocation{}, &InvocationError{ExitCode: ExitSuccess, Message: help.String()}
	}

	workDir := ""
	if strings.TrimSpace(v.workDir) != "" {
		workDir = filepath.Clean(v.workDir)
		if !filepath.IsAbs(workDir) {
			return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", v.workDir)
		}
	}

	cfg, err := config.Load(v.configPath)
	if err != nil {
		return Invocation{}, configErrorf("%v", err)
	}
	changed := cmd.Flags().Changed
	if changed("search-root") {
		cfg.SearchRoot = v.searchRoot
	}
	if changed("output-root") {
		cfg.OutputRoot = v.outputRoot
	}
	if changed("record") {
		cfg.RecordPath = v.recordPath
	}
	if changed("kinds") {
		cfg.Kinds = v.kinds
	}
	if changed("fail-on-error") {
		cfg.FailOnCompileError = v.failOnError
	}
	if changed("jobs") {
		cfg.Concurrency = v.concurrency
	}
	if changed("compiler") {
		cfg.Compiler.Command = v.compiler
	}
	if changed("entry-point") {
		cfg.Compiler.EntryPoint = v.entryPoint
	}
	if changed("trace") {
		cfg.TracePath = v.tracePath
	}
	if changed("history-dir") {
		cfg.HistoryDir = v.historyDir
	}
	if changed("metrics-file") {
		cfg.MetricsFile = v.metricsFile
	}
	if changed("log-level") {
		cfg.Log.Level = v.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = v.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return Invocation{}, configErrorf("%v", err)
	}

	if workDir != "" {
		for _, p := range []*string{&cfg.SearchRoot, &cfg.OutputRoot, &cfg.RecordPath, &cfg.TracePath, &cfg.HistoryDir, &cfg.MetricsFile} {
			*p = resolveUnderWorkDir(workDir, *p)
		}
	}

	return Invocation{
		ConfigPath: v.configPath,
		WorkDir:    workDir,
		DryRun:     v.dryRun,
		Config:     cfg,
	}, nil
}

// resolveUnderWorkDir joins relative paths onto workDir. Empty stays empty.
func resolveUnderWorkDir(workDir, p string) string {
	if strings.TrimSpace(p) == "" {
		return p
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(workDir, clean)
}

// ExitCode maps an error from ParseInvocation or Execute to an exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		return invErr.ExitCode
	}
	if errors.Is(err, config.ErrInvalid) || core.IsConfigError(err) {
		return ExitConfigError
	}
	runErrs := []error{
		core.ErrTraversal, core.ErrStat, core.ErrCompilerInit, core.ErrWrite, core.ErrRecord,
		context.Canceled, context.DeadlineExceeded,
	}
	for _, runErr := range runErrs {
		if errors.Is(err, runErr) {
			return ExitRunFailure
		}
	}
	var batch *core.BatchError
	if errors.As(err, &batch) {
		return ExitRunFailure
	}
	return ExitInternalError
}
