package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder writes the run.json and failure.json of a single run.
type Recorder struct {
	Store *Store

	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// NewRunID returns a time-ordered UUID (version 7).
func (r *Recorder) NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// StartRun assigns an ID, links the previous run and persists run as running.
func (r *Recorder) StartRun(run Run) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	prev, err := r.Store.LatestRunID()
	if err != nil {
		return Run{}, fmt.Errorf("find previous run: %w", err)
	}
	if prev != "" {
		run.PreviousRunID = &prev
	}
	if run.RunID == "" {
		if run.RunID, err = r.NewRunID(); err != nil {
			return Run{}, fmt.Errorf("new run id: %w", err)
		}
	}
	if run.StartTime.IsZero() {
		run.StartTime = r.now()
	}
	run.Status = RunStatusRunning
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun persists the final state of run. A non-nil runErr marks the run
// failed and writes failure.json.
func (r *Recorder) FinishRun(run Run, runErr error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	run.FinishTime = r.now()
	run.Status = RunStatusSucceeded
	if runErr != nil {
		run.Status = RunStatusFailed
	}
	if err := r.Store.SaveRun(run); err != nil {
		return err
	}
	if runErr == nil {
		return nil
	}
	return r.RecordFailure(run.RunID, runErr)
}

func (r *Recorder) RecordFailure(runID string, err error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	f, ferr := FailureFromError(err)
	if ferr != nil {
		return ferr
	}
	return r.Store.SaveFailure(runID, f)
}
