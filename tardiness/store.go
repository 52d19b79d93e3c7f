/*
store.go - Persistence interfaces for the tardiness engine

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  AccumulationStore: the monthly counter rows (get-or-create, atomic delta)
  RuleRepository:    read-only access to configured tardiness rules
  EventLog:          append-only record of processed check-ins

CONCURRENCY CONTRACT:
  GetOrCreate must be safe under concurrent check-ins for the same
  employee and month: the insert path must not race into a duplicate row.
  Implementations enforce a uniqueness constraint on (employee, year,
  month) and treat a conflict as "fetch existing".

  ApplyDelta applies all four counters in one transaction, never
  partially. Transient lock conflicts surface as ErrConcurrentConflict
  and are retried by the pipeline.

IDEMPOTENCY:
  EventLog.Record rejects a duplicate attendance event id with
  ErrDuplicateEvent. Stores that implement AtomicApplier couple the
  counter delta and the event record in one transaction, which is what
  makes a crash-and-retry unable to double-apply counters.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - store/memory: in-memory for tests
*/
package tardiness

import "context"

// =============================================================================
// ACCUMULATION STORE
// =============================================================================

// AccumulationStore persists the per-employee-per-month counter rows.
type AccumulationStore interface {
	// GetOrCreate atomically returns the existing row or inserts a
	// zeroed one. Safe under concurrent callers for the same key.
	GetOrCreate(ctx context.Context, key MonthKey) (Accumulation, error)

	// Get returns the row if it exists. Read-only; never creates.
	Get(ctx context.Context, key MonthKey) (Accumulation, bool, error)

	// ApplyDelta atomically increments the counters and returns the
	// updated row. Returns ErrAccumulationNotFound for a missing key.
	ApplyDelta(ctx context.Context, key MonthKey, d Delta) (Accumulation, error)
}

// AtomicApplier is implemented by stores that can apply a counter delta
// and record the originating attendance event in one transaction.
// The pipeline prefers this path when available.
type AtomicApplier interface {
	ApplyDeltaRecording(ctx context.Context, key MonthKey, d Delta, ev Event) (Accumulation, error)
}

// =============================================================================
// RULE REPOSITORY - read-only reference data
// =============================================================================

// RuleRepository resolves rule roles to configured rules. The reference
// table is pre-seeded; a missing role is a configuration error wrapping
// ErrRuleNotFound.
type RuleRepository interface {
	RuleForRole(ctx context.Context, role RuleRole) (Rule, error)
}

// =============================================================================
// EVENT LOG - processed check-ins, append-only
// =============================================================================

// EventLog stores one row per processed attendance event.
type EventLog interface {
	// Find returns the stored event for an attendance id, or nil.
	Find(ctx context.Context, attendanceID string) (*Event, error)

	// Record appends an event. Returns ErrDuplicateEvent if the
	// attendance id is already present.
	Record(ctx context.Context, ev Event) error

	// AttachDisciplinaryRecord links a created disciplinary record to an
	// already-recorded event, so replays can report it.
	AttachDisciplinaryRecord(ctx context.Context, attendanceID, recordID string) error

	// ListMonth returns the events for one employee-month, ordered by
	// occurrence. Feeds the monthly statistics.
	ListMonth(ctx context.Context, key MonthKey) ([]Event, error)
}
