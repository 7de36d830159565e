/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (worktime, pricing, ledger, codec) wrap these errors
  with additional context rather than defining their own sentinels.

ERROR CATEGORIES:
  1. Transition errors - Illegal work-status changes
  2. Validation errors - Bad pricing inputs (missing/negative values)
  3. Decode errors    - Malformed encrypted amounts
  4. Storage errors   - Database-level failures, CAS conflicts

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, engine.ErrInvalidTransition) {
        // 409, do not retry
    }

SEE ALSO:
  - worktime/statemachine.go: Returns InvalidTransitionError
  - pricing/calculator.go: Returns ValidationError
  - ledger/applier.go: Wraps storage failures with ErrStorage
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a requested work-status event is
	// not legal from the current status. Reported to the caller, never retried.
	ErrInvalidTransition = errors.New("invalid work-status transition")

	// ErrValidation is returned for missing or negative numeric inputs and
	// empty milestone lists. Surfaced before any write occurs.
	ErrValidation = errors.New("validation failed")

	// ErrDecode is returned when an encoded amount cannot be decrypted or
	// parsed. Callers must treat the value as "no amount set", never as zero.
	ErrDecode = errors.New("cannot decode amount")

	// ErrStorage wraps any failure from the persistence layer.
	// Propagated unchanged; retries belong to the caller.
	ErrStorage = errors.New("storage failure")

	// ErrConcurrentModification is returned when an optimistic check detects
	// that state changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports an illegal work-status change.
type InvalidTransitionError struct {
	Event   string // requested event type
	Current string // status the event was attempted from
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %s", e.Event, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError reports a bad input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError wraps a driver-level failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorage
}

// WrapStorage wraps err as a StorageError unless it is already part of the
// engine taxonomy (so CAS conflicts and not-found pass through unchanged).
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDecode) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
