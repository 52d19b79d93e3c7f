package discipline

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRecord is returned when a uniqueness constraint rejects a
// record insert. Expected under concurrent evaluation of the same event;
// the evaluator treats it as "already created" and moves on.
var ErrDuplicateRecord = errors.New("disciplinary record already exists")

// =============================================================================
// RULE REPOSITORY - read-only reference data
// =============================================================================

// RuleRepository exposes the configured disciplinary action rules.
type RuleRepository interface {
	// HighestFormalTardiesRule returns the active FORMAL_TARDIES rule
	// with the largest threshold <= formalTardies, or nil when none is
	// met.
	HighestFormalTardiesRule(ctx context.Context, formalTardies int) (*Rule, error)

	// AdministrativeActsRule returns the active ADMINISTRATIVE_ACTS
	// rule, or nil when none is configured. At most one is assumed.
	AdministrativeActsRule(ctx context.Context) (*Rule, error)
}

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore persists disciplinary records and answers the idempotence
// queries the evaluators rely on.
type RecordStore interface {
	// Create appends a record. Returns ErrDuplicateRecord when a
	// uniqueness constraint (one record per employee/rule/month for
	// formal-tardies triggers) rejects it.
	Create(ctx context.Context, rec Record) error

	// ExistsForRuleInMonth reports whether a record for (employee, rule)
	// was applied within the given calendar month.
	ExistsForRuleInMonth(ctx context.Context, employeeID, ruleID string, year int, month time.Month) (bool, error)

	// CountAdministrativeActs counts ACTIVE or COMPLETED administrative
	// acts applied in [since, until]. Recomputed live on every call, so
	// acts cancelled after the fact stop counting.
	CountAdministrativeActs(ctx context.Context, employeeID string, since, until time.Time) (int, error)

	// HasOpenTermination reports whether a PENDING or ACTIVE termination
	// record exists for (employee, rule).
	HasOpenTermination(ctx context.Context, employeeID, ruleID string) (bool, error)

	// ListByEmployee returns the most recent records first.
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]Record, error)
}

// ActCounter increments the administrative-acts counter on the month's
// accumulation row. Implemented by the tardiness accumulation store.
type ActCounter interface {
	IncrementAdministrativeActs(ctx context.Context, employeeID string, year int, month time.Month) error
}

// AtomicRecorder is implemented by stores that can create the record and
// increment the month's administrative-acts counter in one transaction.
// The evaluator prefers this path when available.
type AtomicRecorder interface {
	CreateWithActIncrement(ctx context.Context, rec Record, year int, month time.Month) error
}
