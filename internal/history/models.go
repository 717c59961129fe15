// Package history keeps a durable record of past runs under a history
// directory: one run.json per run and, for failed runs, a failure.json.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted metadata of one run.
type Run struct {
	RunID         string    `json:"run_id"`
	PreviousRunID *string   `json:"previous_run_id"`
	StartTime     time.Time `json:"start_time"`
	FinishTime    time.Time `json:"finish_time"`
	Status        RunStatus `json:"status"`
	DryRun        bool      `json:"dry_run"`

	SearchRoot string   `json:"search_root"`
	OutputRoot string   `json:"output_root"`
	Kinds      []string `json:"kinds"`

	Discovered int `json:"discovered"`
	Stale      int `json:"stale"`
	Compiled   int `json:"compiled"`
	Failed     int `json:"failed"`
	Written    int `json:"written"`

	// TraceHash is the hash of the canonical run trace, when one was kept.
	TraceHash string `json:"trace_hash,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.PreviousRunID != nil && strings.TrimSpace(*r.PreviousRunID) == "" {
		errs = append(errs, errors.New("previous_run_id must not be empty when provided"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Status != RunStatusRunning && r.FinishTime.IsZero() {
		errs = append(errs, errors.New("finish_time is required once the run has ended"))
	}
	for name, n := range map[string]int{
		"discovered": r.Discovered, "stale": r.Stale, "compiled": r.Compiled,
		"failed": r.Failed, "written": r.Written,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0", name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassConfiguration FailureClass = "configuration"
	FailureClassDiscovery     FailureClass = "discovery"
	FailureClassCompiler      FailureClass = "compiler"
	FailureClassWrite         FailureClass = "write"
	FailureClassBatch         FailureClass = "batch"
	FailureClassSystem        FailureClass = "system"
)

// Failure is the recorded reason a run failed.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Path         *string      `json:"path,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`

	// Candidates lists the failed candidate paths of a batch failure.
	Candidates []string `json:"candidates,omitempty"`

	// Retryable is true when rerunning with unchanged sources and
	// configuration may succeed.
	Retryable bool `json:"retryable"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfiguration, FailureClassDiscovery, FailureClassCompiler,
		FailureClassWrite, FailureClassBatch, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Path != nil && strings.TrimSpace(*f.Path) == "" {
		errs = append(errs, errors.New("path must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if f.FailureClass == FailureClassBatch && len(f.Candidates) == 0 {
		errs = append(errs, errors.New("candidates are required for a batch failure"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
