package planner

import (
	"errors"
	"fmt"
)

// ErrCycleLocked and related errors describe planning-run failures.
var (
	ErrCycleLocked = errors.New("cycle is already being planned")
	ErrNoPlan      = errors.New("no plan recorded for cycle")
)

// ExternalServiceError marks a tracker or registry call that failed after
// retries.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DataInconsistencyError marks one item skipped for a missing or malformed
// field. It is isolated per item and never aborts a run.
type DataInconsistencyError struct {
	ItemID string
	Err    error
}

func (e *DataInconsistencyError) Error() string {
	return fmt.Sprintf("item %s inconsistent: %v", e.ItemID, e.Err)
}

func (e *DataInconsistencyError) Unwrap() error { return e.Err }

// ConstraintUnsatisfiableError marks a run that could not produce a full
// plan: zero capacity or an empty eligible backlog. Non-fatal; the run emits
// an empty or partial plan carrying the reason code.
type ConstraintUnsatisfiableError struct {
	ReasonCode string
}

func (e *ConstraintUnsatisfiableError) Error() string {
	return fmt.Sprintf("constraints unsatisfiable: %s", e.ReasonCode)
}

// ConfigurationError marks an out-of-range threshold. It fails the run fast,
// before any tracker call.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// PlanningAbortedError marks a whole run aborted by an unrecoverable external
// failure.
type PlanningAbortedError struct {
	Cause error
}

func (e *PlanningAbortedError) Error() string {
	return fmt.Sprintf("planning aborted: %v", e.Cause)
}

func (e *PlanningAbortedError) Unwrap() error { return e.Cause }
