/*
errors.go - Centralized error types for the tardiness engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy mirrors how callers must react:

  1. Configuration errors - missing seed data (rule lookups)
  2. Input errors         - malformed schedule times
  3. Conflict errors      - concurrent counter updates, retried locally
  4. Persistence errors   - propagated, nothing partial remains observable

USAGE:
  if tardiness.IsConfigError(err) {
      // missing reference data, surface to the operator not the user
  }

SEE ALSO:
  - lateness.go: wraps parse failures in ScheduleTimeError
  - selector.go: wraps rule misses in RuleLookupError
*/
package tardiness

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRuleNotFound is returned when no tardiness rule matches a lateness
	// band, or the rule configured for a role is missing from the
	// repository. This is missing seed data, not a user-facing failure.
	ErrRuleNotFound = errors.New("no applicable tardiness rule")

	// ErrMalformedScheduleTime is returned when a scheduled start time
	// string cannot be parsed. The event fails; nothing is persisted.
	ErrMalformedScheduleTime = errors.New("malformed schedule time")

	// ErrConcurrentConflict is returned by stores when a get-or-create or
	// increment races with another writer. The pipeline retries it.
	ErrConcurrentConflict = errors.New("concurrent accumulation conflict")

	// ErrAccumulationNotFound is returned when a delta targets a month row
	// that does not exist.
	ErrAccumulationNotFound = errors.New("accumulation row not found")

	// ErrDuplicateEvent is returned when an attendance event id has
	// already been recorded. Expected behavior for retries.
	ErrDuplicateEvent = errors.New("attendance event already processed")

	// ErrInvalidInput is returned when a process request is missing its
	// employee or attendance identifiers.
	ErrInvalidInput = errors.New("invalid tardiness input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleLookupError reports which band and role had no configured rule.
type RuleLookupError struct {
	Role          RuleRole
	MinutesLate   int
	FormalTardies int
}

func (e *RuleLookupError) Error() string {
	return fmt.Sprintf("no rule configured for role %q (minutes_late=%d, formal_tardies=%d)",
		e.Role, e.MinutesLate, e.FormalTardies)
}

func (e *RuleLookupError) Unwrap() error { return ErrRuleNotFound }

// ScheduleTimeError reports an unparseable scheduled start time.
type ScheduleTimeError struct {
	Value string
	Err   error
}

func (e *ScheduleTimeError) Error() string {
	return fmt.Sprintf("cannot parse schedule time %q: %v", e.Value, e.Err)
}

func (e *ScheduleTimeError) Unwrap() error { return ErrMalformedScheduleTime }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentConflict)
}

// IsConfigError returns true if the error indicates missing reference data.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedScheduleTime) ||
		errors.Is(err, ErrInvalidInput)
}
