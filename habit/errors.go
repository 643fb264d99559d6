/*
errors.go - Error types for the habit engine

PURPOSE:
  All habit-engine error types in one place. Callers distinguish three
  kinds: validation (reject before any mutation), not-found, and
  persistence (whole batch rolled back, safe to retry).

USAGE:
  if errors.Is(err, habit.ErrInvalidRule) { ... reject with 400 ... }
  if errors.Is(err, habit.ErrDuplicateOccurrence) { ... retry raced, ignore ... }

SEE ALSO:
  - reconciler.go: returns these from Reconcile
  - store/sqlite: maps UNIQUE-constraint failures to ErrDuplicateOccurrence
*/
package habit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRule is returned when a recurrence rule fails validation.
	// Surfaced before any mutation is attempted.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrTemplateNotFound is returned when a referenced template doesn't exist.
	ErrTemplateNotFound = errors.New("habit template not found")

	// ErrOccurrenceNotFound is returned when a referenced occurrence doesn't exist.
	ErrOccurrenceNotFound = errors.New("habit occurrence not found")

	// ErrDuplicateOccurrence is returned when an insert collides with an
	// existing occurrence for the same (template, scheduledStart). This is
	// the storage-level backstop behind the reconciler's idempotency guard;
	// a concurrent generator losing the race sees this and can safely stop.
	ErrDuplicateOccurrence = errors.New("occurrence already exists for scheduled start")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports a malformed template or recurrence rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recurrence rule: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrOccurrenceNotFound)
}
