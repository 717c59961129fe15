package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"shaderwrangler/internal/config"
	"shaderwrangler/internal/core"
)

func TestStore_SaveAndLoadRun_PreviousRunIDIsNullable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	run := Run{
		RunID:     "run-1",
		StartTime: time.Unix(1, 2).UTC(),
		Status:    RunStatusRunning,
		Kinds:     []string{"vertex"},
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-1", "run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"previous_run_id\": null") {
		t.Fatalf("expected previous_run_id to be null; got: %s", data)
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.PreviousRunID != nil || !loaded.StartTime.Equal(run.StartTime) {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
}

func TestStore_RejectsInvalidAndTrailingContent(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)

	if err := store.SaveRun(Run{RunID: "x", Status: RunStatusSucceeded}); err == nil {
		t.Fatalf("expected validation error for missing times")
	}

	p := filepath.Join(dir, "runs", "bad", "failure.json")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"failure_class":"write","error_code":"WriteFailed","error_message":"x","retryable":true}{}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadFailure("bad"); err == nil {
		t.Fatalf("expected trailing content error")
	}

	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}

func TestRecorder_LinksRunsAndRecordsFailure(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &Recorder{Store: store, Now: func() time.Time { return clock }}

	first, err := rec.StartRun(Run{SearchRoot: "shaders"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if _, err := uuid.Parse(first.RunID); err != nil {
		t.Fatalf("expected uuid run id, got %q", first.RunID)
	}
	if first.PreviousRunID != nil {
		t.Fatalf("first run should have no predecessor")
	}
	first.Written = 2
	if err := rec.FinishRun(first, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	second, err := rec.StartRun(Run{SearchRoot: "shaders"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if second.PreviousRunID == nil || *second.PreviousRunID != first.RunID {
		t.Fatalf("expected previous run %s, got %v", first.RunID, second.PreviousRunID)
	}
	writeErr := &core.WranglerError{Kind: core.ErrWrite, Path: "out/a.spv_vert", Err: errors.New("disk full")}
	if err := rec.FinishRun(second, writeErr); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	loaded, err := store.LoadRun(second.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Status != RunStatusFailed || !loaded.FinishTime.Equal(clock) {
		t.Fatalf("unexpected run: %+v", loaded)
	}
	f, err := store.LoadFailure(second.RunID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.FailureClass != FailureClassWrite || f.Path == nil || *f.Path != "out/a.spv_vert" || !f.Retryable {
		t.Fatalf("unexpected failure: %+v", f)
	}

	ids, err := store.ListRunIDs()
	if err != nil {
		t.Fatalf("ListRunIDs: %v", err)
	}
	if len(ids) != 2 || ids[1] != second.RunID {
		t.Fatalf("expected runs in creation order, got %v", ids)
	}
	if _, err := store.LoadFailure(first.RunID); !os.IsNotExist(err) {
		t.Fatalf("successful run must not have failure.json, got %v", err)
	}
}

func TestFailureFromError_Classifies(t *testing.T) {
	cases := []struct {
		err       error
		class     FailureClass
		code      string
		retryable bool
	}{
		{fmt.Errorf("%w: kinds empty", config.ErrInvalid), FailureClassConfiguration, "InvalidConfig", false},
		{&core.WranglerError{Kind: core.ErrUnsupportedKind, Msg: "geometry"}, FailureClassConfiguration, "UnsupportedKind", false},
		{&core.WranglerError{Kind: core.ErrBadPattern}, FailureClassConfiguration, "BadPattern", false},
		{&core.WranglerError{Kind: core.ErrTraversal, Path: "shaders/x"}, FailureClassDiscovery, "Traversal", true},
		{&core.WranglerError{Kind: core.ErrStat, Path: "a.vert"}, FailureClassDiscovery, "StatFailed", true},
		{&core.WranglerError{Kind: core.ErrCompilerInit}, FailureClassCompiler, "CompilerInit", false},
		{errors.Join(
			&core.WranglerError{Kind: core.ErrWrite, Path: "out/a"},
			&core.WranglerError{Kind: core.ErrRecord, Path: "rec"},
		), FailureClassWrite, "WriteFailed", true},
		{errors.New("boom"), FailureClassSystem, "UnknownError", true},
	}
	for i, tc := range cases {
		f, err := FailureFromError(tc.err)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if f.FailureClass != tc.class || f.ErrorCode != tc.code || f.Retryable != tc.retryable {
			t.Fatalf("case %d: unexpected failure %+v", i, f)
		}
		if err := f.Validate(); err != nil {
			t.Fatalf("case %d: classified failure is invalid: %v", i, err)
		}
	}
}

func TestFailureFromError_BatchListsCandidates(t *testing.T) {
	batch := &core.BatchError{Failures: []error{
		&core.CompileError{Candidate: core.Candidate{Path: "b.frag", Kind: core.KindFragment}, Step: "compile", Err: errors.New("syntax")},
		&core.CompileError{Candidate: core.Candidate{Path: "c.comp", Kind: core.KindCompute}, Step: "read", Err: errors.New("gone")},
	}}
	f, err := FailureFromError(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassBatch || len(f.Candidates) != 2 || f.Candidates[0] != "b.frag" || f.Retryable {
		t.Fatalf("unexpected failure: %+v", f)
	}

	if _, err := FailureFromError(nil); err == nil {
		t.Fatalf("expected error for nil")
	}
}
