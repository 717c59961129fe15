// Package config loads run configuration from HCL, TOML or YAML files.
//
// Precedence is defaults, then the file, then command-line flags (applied by
// the caller). The file format is chosen by extension.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"shaderwrangler/internal/compiler"
	"shaderwrangler/internal/core"
	"shaderwrangler/internal/pipeline"
)

// ErrInvalid classifies every configuration problem.
var ErrInvalid = errors.New("invalid configuration")

// Config is the file representation of a run.
type Config struct {
	Kinds              []string          `hcl:"kinds,optional" toml:"kinds" yaml:"kinds"`
	SearchRoot         string            `hcl:"search_root,optional" toml:"search_root" yaml:"search_root"`
	OutputRoot         string            `hcl:"output_root,optional" toml:"output_root" yaml:"output_root"`
	RecordPath         string            `hcl:"record_path,optional" toml:"record_path" yaml:"record_path"`
	FailOnCompileError bool              `hcl:"fail_on_compile_error,optional" toml:"fail_on_compile_error" yaml:"fail_on_compile_error"`
	Concurrency        int               `hcl:"concurrency,optional" toml:"concurrency" yaml:"concurrency"`
	Extensions         map[string]string `hcl:"extensions,optional" toml:"extensions" yaml:"extensions"`

	TracePath   string `hcl:"trace_path,optional" toml:"trace_path" yaml:"trace_path"`
	HistoryDir  string `hcl:"history_dir,optional" toml:"history_dir" yaml:"history_dir"`
	MetricsFile string `hcl:"metrics_file,optional" toml:"metrics_file" yaml:"metrics_file"`

	Compiler *CompilerConfig `hcl:"compiler,block" toml:"compiler" yaml:"compiler"`
	Log      *LogConfig      `hcl:"log,block" toml:"log" yaml:"log"`
}

// CompilerConfig configures the external compiler process.
type CompilerConfig struct {
	Command    string            `hcl:"command,optional" toml:"command" yaml:"command"`
	EntryPoint string            `hcl:"entry_point,optional" toml:"entry_point" yaml:"entry_point"`
	Env        map[string]string `hcl:"env,optional" toml:"env" yaml:"env"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `hcl:"level,optional" toml:"level" yaml:"level"`
	Format string `hcl:"format,optional" toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{
		Kinds:      []string{"vertex", "fragment", "compute"},
		SearchRoot: "shaders",
		OutputRoot: "build/shaders",
		RecordPath: filepath.Join(".shaderwrangler", "record.msgpack"),
	}
	c.applyDefaults()
	return c
}

// applyDefaults fills blocks and fields a file left empty.
func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.Compiler == nil {
		c.Compiler = &CompilerConfig{}
	}
	if c.Compiler.Command == "" {
		c.Compiler.Command = compiler.DefaultCommand
	}
	if c.Compiler.EntryPoint == "" {
		c.Compiler.EntryPoint = core.DefaultEntryPoint
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Kinds) == 0 {
		errs = append(errs, errors.New("kinds must not be empty"))
	}
	for _, raw := range c.Kinds {
		if _, err := parseSupported(raw); err != nil {
			errs = append(errs, fmt.Errorf("kinds: %w", err))
		}
	}
	if strings.TrimSpace(c.SearchRoot) == "" {
		errs = append(errs, errors.New("search_root must be specified"))
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		errs = append(errs, errors.New("output_root must be specified"))
	}
	if strings.TrimSpace(c.RecordPath) == "" {
		errs = append(errs, errors.New("record_path must be specified"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	for _, name := range sortedKeys(c.Extensions) {
		if _, err := parseSupported(name); err != nil {
			errs = append(errs, fmt.Errorf("extensions: %w", err))
		}
		ext := c.Extensions[name]
		if ext == "" || strings.ContainsAny(ext, `/\*?[]{}.`) {
			errs = append(errs, fmt.Errorf("extensions.%s: invalid extension %q", name, ext))
		}
	}
	if c.Compiler != nil && strings.TrimSpace(c.Compiler.Command) == "" {
		errs = append(errs, errors.New("compiler.command must not be blank"))
	}
	if c.Log != nil {
		if !validLevels[c.Log.Level] {
			errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
		}
		if c.Log.Format != "text" && c.Log.Format != "json" {
			errs = append(errs, fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Instructions converts a validated Config into pipeline instructions.
func (c *Config) Instructions() (pipeline.Instructions, error) {
	in := pipeline.Instructions{
		SearchRoot:         c.SearchRoot,
		OutputRoot:         c.OutputRoot,
		RecordPath:         c.RecordPath,
		FailOnCompileError: c.FailOnCompileError,
		Concurrency:        c.Concurrency,
	}
	if c.Compiler != nil {
		in.EntryPoint = c.Compiler.EntryPoint
	}
	for _, raw := range c.Kinds {
		k, err := parseSupported(raw)
		if err != nil {
			return pipeline.Instructions{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		in.Kinds = append(in.Kinds, k)
	}
	if len(c.Extensions) > 0 {
		in.Extensions = make(map[core.Kind]string, len(c.Extensions))
		for name, ext := range c.Extensions {
			k, err := parseSupported(name)
			if err != nil {
				return pipeline.Instructions{}, fmt.Errorf("%w: %w", ErrInvalid, err)
			}
			in.Extensions[k] = ext
		}
	}
	return in, nil
}

// CompilerOptions returns the process compiler settings.
func (c *Config) CompilerOptions() compiler.Options {
	if c.Compiler == nil {
		return compiler.Options{}
	}
	return compiler.Options{Command: c.Compiler.Command, Env: c.Compiler.Env}
}

func parseSupported(raw string) (core.Kind, error) {
	k, err := core.ParseKind(raw)
	if err != nil {
		return 0, err
	}
	if _, err := k.Extension(); err != nil {
		return 0, err
	}
	return k, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
