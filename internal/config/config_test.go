package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaderwrangler/internal/compiler"
	"shaderwrangler/internal/core"
	"shaderwrangler/internal/pipeline"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const hclConfig = `
kinds                 = ["vert", "fragment"]
search_root           = "assets/shaders"
output_root           = "build/spv"
record_path           = "build/record.db"
fail_on_compile_error = true
concurrency           = 4
extensions = {
  fragment = "fs"
}
trace_path = "build/trace.json"

compiler {
  command = "glslangValidator -V --stdin -S {ext} -o /dev/stdout"
  env = {
    VULKAN_SDK = "/opt/vulkan"
  }
}

log {
  level = "debug"
}
`

const tomlConfig = `
kinds = ["vert", "fragment"]
search_root = "assets/shaders"
output_root = "build/spv"
record_path = "build/record.db"
fail_on_compile_error = true
concurrency = 4
trace_path = "build/trace.json"

[extensions]
fragment = "fs"

[compiler]
command = "glslangValidator -V --stdin -S {ext} -o /dev/stdout"

[compiler.env]
VULKAN_SDK = "/opt/vulkan"

[log]
level = "debug"
`

const yamlConfig = `
kinds: [vert, fragment]
search_root: assets/shaders
output_root: build/spv
record_path: build/record.db
fail_on_compile_error: true
concurrency: 4
extensions:
  fragment: fs
trace_path: build/trace.json
compiler:
  command: "glslangValidator -V --stdin -S {ext} -o /dev/stdout"
  env:
    VULKAN_SDK: /opt/vulkan
log:
  level: debug
`

func TestLoad_AllFormatsAgree(t *testing.T) {
	want := &Config{
		Kinds:              []string{"vert", "fragment"},
		SearchRoot:         "assets/shaders",
		OutputRoot:         "build/spv",
		RecordPath:         "build/record.db",
		FailOnCompileError: true,
		Concurrency:        4,
		Extensions:         map[string]string{"fragment": "fs"},
		TracePath:          "build/trace.json",
		Compiler: &CompilerConfig{
			Command:    "glslangValidator -V --stdin -S {ext} -o /dev/stdout",
			EntryPoint: "main",
			Env:        map[string]string{"VULKAN_SDK": "/opt/vulkan"},
		},
		Log: &LogConfig{Level: "debug", Format: "text"},
	}

	for name, body := range map[string]string{
		"wrangler.hcl":  hclConfig,
		"wrangler.toml": tomlConfig,
		"wrangler.yaml": yamlConfig,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Load(writeConfig(t, name, body))
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
	assert.Equal(t, compiler.DefaultCommand, got.Compiler.Command)
	require.NoError(t, got.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	got, err := Load(writeConfig(t, "partial.toml", `search_root = "src"`))
	require.NoError(t, err)
	assert.Equal(t, "src", got.SearchRoot)
	assert.Equal(t, Default().OutputRoot, got.OutputRoot)
	assert.Equal(t, []string{"vertex", "fragment", "compute"}, got.Kinds)
	assert.Equal(t, "info", got.Log.Level)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	cases := map[string]string{
		"bad.hcl":  `serach_root = "x"`,
		"bad.toml": `serach_root = "x"`,
		"bad.yaml": `serach_root: x`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, name, body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestLoad_RejectsUnknownFormatAndMissingFile(t *testing.T) {
	_, err := Load(writeConfig(t, "wrangler.json", `{}`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := Default()
	c.Kinds = []string{"geometry", "banana"}
	c.SearchRoot = ""
	c.Concurrency = 0
	c.Extensions = map[string]string{"vertex": "**"}
	c.Log.Level = "loud"

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, core.ErrUnsupportedKind)
	msg := err.Error()
	for _, want := range []string{"banana", "search_root", "concurrency", "extensions.vertex", "loud"} {
		assert.Contains(t, msg, want)
	}
}

func TestInstructions_ResolvesKinds(t *testing.T) {
	c := Default()
	c.Kinds = []string{"vert", "comp"}
	c.Extensions = map[string]string{"comp": "glsl"}

	in, err := c.Instructions()
	require.NoError(t, err)
	want := pipeline.Instructions{
		Kinds:       []core.Kind{core.KindVertex, core.KindCompute},
		SearchRoot:  c.SearchRoot,
		OutputRoot:  c.OutputRoot,
		RecordPath:  c.RecordPath,
		Concurrency: 1,
		EntryPoint:  "main",
		Extensions:  map[core.Kind]string{core.KindCompute: "glsl"},
	}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Fatalf("instructions mismatch (-want +got):\n%s", diff)
	}
}
