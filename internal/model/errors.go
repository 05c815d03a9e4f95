package model

import "fmt"

// FetchError is returned by the fetcher when an external call fails
// terminally. Transient failures are retried inside the fetcher and never
// surface past it unless retries exhaust.
type FetchError struct {
	Provider  string
	Reason    string
	Retriable bool
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.Provider, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// StageError reports that a stage transform failed. It always surfaces to
// the orchestrator, which halts the pipeline and records the failed state.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError wraps cause with the failing stage name.
func NewStageError(stage Stage, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}

// CheckpointCorruptError indicates a checkpoint payload failed to
// deserialize on resume. Fatal: operator intervention is required, the
// error is never silently discarded.
type CheckpointCorruptError struct {
	ProjectID string
	Stage     Stage
	Cause     error
}

func (e *CheckpointCorruptError) Error() string {
	return fmt.Sprintf("checkpoint corrupt for project %s at stage %s: %v", e.ProjectID, e.Stage, e.Cause)
}

func (e *CheckpointCorruptError) Unwrap() error {
	return e.Cause
}
