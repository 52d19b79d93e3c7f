/*
Package discipline implements disciplinary escalation on top of the
tardiness accumulators.

PURPOSE:
  Two evaluators cascade the monthly counters into formal records:

  - the trigger evaluator converts a formal-tardy count crossing a
    configured threshold into a disciplinary record (an administrative
    act), at most once per employee per rule per calendar month;
  - the termination evaluator counts administrative acts in a rolling
    window and proposes termination once per active window, never while
    a proposal is already outstanding.

RECORD LIFECYCLE:
  PENDING -> ACTIVE (approved) -> COMPLETED (served/expired)
  PENDING -> CANCELLED (rejected)

  This package only ever creates records in PENDING or ACTIVE. The
  transitions happen in external approval workflows; statuses are
  read-only inputs to the idempotence checks here.

SEE ALSO:
  - evaluator.go: the two evaluators
  - store.go:     persistence interfaces
*/
package discipline

import "time"

// =============================================================================
// REFERENCE DATA - disciplinary action rules
// =============================================================================

type TriggerType string

const (
	TriggerFormalTardies       TriggerType = "formal_tardies"
	TriggerAdministrativeActs  TriggerType = "administrative_acts"
	TriggerUnjustifiedAbsences TriggerType = "unjustified_absences"
)

type ActionType string

const (
	ActionAdministrativeAct ActionType = "administrative_act"
	ActionSuspension        ActionType = "suspension"
	ActionTermination       ActionType = "termination"
	ActionWarning           ActionType = "warning"
	ActionWrittenWarning    ActionType = "written_warning"
)

// Rule is one configured disciplinary action rule (read-only here).
type Rule struct {
	ID           string
	Name         string
	TriggerType  TriggerType
	TriggerCount int

	// PeriodDays is the rolling window length, used by
	// administrative-acts rules.
	PeriodDays int

	ActionType       ActionType
	SuspensionDays   int
	RequiresApproval bool
	Active           bool
}

// =============================================================================
// RECORDS - append-only event log of triggered actions
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Record is one triggered disciplinary action for an employee.
type Record struct {
	ID             string
	EmployeeID     string
	RuleID         string
	ActionType     ActionType
	TriggerType    TriggerType
	TriggerCount   int // the count that caused the trigger
	AppliedDate    time.Time
	SuspensionDays *int
	Status         Status
	Description    string
	CreatedAt      time.Time
}

// Open reports whether the record still blocks a new proposal of the
// same kind.
func (r Record) Open() bool {
	return r.Status == StatusPending || r.Status == StatusActive
}
