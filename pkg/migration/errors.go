package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhase matches any *InvalidPhaseError.
	ErrInvalidPhase = errors.New("invalid migration phase")
	// ErrUnknownFlag matches any *UnknownFlagError.
	ErrUnknownFlag = errors.New("unknown flag")
	// ErrValidationFailed matches any *ValidationFailedError.
	ErrValidationFailed = errors.New("data validation failed")
)

type InvalidPhaseError struct {
	Phase int
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("invalid migration phase %d: must be between %d and %d", e.Phase, MinPhase, MaxPhase)
}

func (e *InvalidPhaseError) Is(target error) bool { return target == ErrInvalidPhase }

type UnknownFlagError struct {
	Name string
}

func (e *UnknownFlagError) Error() string {
	return fmt.Sprintf("unknown flag %q", e.Name)
}

func (e *UnknownFlagError) Is(target error) bool { return target == ErrUnknownFlag }

type InvalidFlagValueError struct {
	Name  string
	Value any
}

func (e *InvalidFlagValueError) Error() string {
	return fmt.Sprintf("invalid value %v (%T) for flag %q", e.Value, e.Value, e.Name)
}

// PrimaryWriteError means the source of record rejected the write. Nothing
// else ran, so there is nothing to compensate.
type PrimaryWriteError struct {
	Entity        string
	Operation     string
	CorrelationID string
	Err           error
}

func (e *PrimaryWriteError) Error() string {
	return fmt.Sprintf("[%s] primary write failed for %s %s: %v", e.CorrelationID, e.Entity, e.Operation, e.Err)
}

func (e *PrimaryWriteError) Unwrap() error { return e.Err }

// SecondaryWriteError means the migrating side rejected the write. In the
// dual-write branch the primary succeeded first and Rollback reports whether
// undoing it worked; in the target-only branch TargetOnly is set and no
// rollback was attempted.
type SecondaryWriteError struct {
	Entity        string
	Operation     string
	EntityID      string
	CorrelationID string
	TargetOnly    bool
	Err           error
	Rollback      *RollbackError
}

func (e *SecondaryWriteError) Error() string {
	if e.TargetOnly {
		return fmt.Sprintf("[%s] target write failed for %s %s: %v", e.CorrelationID, e.Entity, e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] secondary write failed for %s %s (id %s): %v", e.CorrelationID, e.Entity, e.Operation, e.EntityID, e.Err)
}

// Unwrap exposes the secondary's error only; a rollback failure never
// replaces it.
func (e *SecondaryWriteError) Unwrap() error { return e.Err }

// RolledBack reports whether the primary was restored.
func (e *SecondaryWriteError) RolledBack() bool {
	return !e.TargetOnly && e.Rollback == nil
}

type RollbackError struct {
	Entity        string
	EntityID      string
	CorrelationID string
	Err           error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("[%s] rollback failed for %s %s: %v", e.CorrelationID, e.Entity, e.EntityID, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

type PrimaryReadError struct {
	Entity        string
	Operation     string
	CorrelationID string
	Err           error
}

func (e *PrimaryReadError) Error() string {
	return fmt.Sprintf("[%s] primary read failed for %s %s: %v", e.CorrelationID, e.Entity, e.Operation, e.Err)
}

func (e *PrimaryReadError) Unwrap() error { return e.Err }

type SecondaryReadError struct {
	Entity        string
	Operation     string
	CorrelationID string
	Err           error
}

func (e *SecondaryReadError) Error() string {
	return fmt.Sprintf("[%s] secondary read failed for %s %s: %v", e.CorrelationID, e.Entity, e.Operation, e.Err)
}

func (e *SecondaryReadError) Unwrap() error { return e.Err }

// ValidationFailedError carries the divergence report of a dual read. Its
// message is the actionable summary.
type ValidationFailedError struct {
	Report  *ValidationReport
	Message string
}

func (e *ValidationFailedError) Error() string { return e.Message }

func (e *ValidationFailedError) Is(target error) bool { return target == ErrValidationFailed }

// Details lists the individual divergences.
func (e *ValidationFailedError) Details() string {
	if e.Report == nil {
		return ""
	}
	return FormatErrorsForThrow(e.Report.Errors)
}
