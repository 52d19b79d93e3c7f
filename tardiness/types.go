/*
Package tardiness implements the tardiness accumulation engine.

PURPOSE:
  Converts raw check-in lateness into monthly per-employee accumulators and
  promotes accumulated minor infractions into formal, sanctionable tardies.
  The package owns the full pipeline for one attendance event:

    lateness calculation -> rule selection -> rule application
      -> disciplinary trigger evaluation -> termination evaluation

KEY CONCEPTS IN THIS FILE (types.go):
  - Accumulation: the per-employee-per-month counter row
  - Rule / RuleRole: configured conversion rules addressed by role
  - Delta: an atomic set of counter increments (and resets)
  - Event: the append-only record of a processed check-in
  - Result: what the calling attendance workflow gets back

DESIGN PRINCIPLES:
  1. One row per (employee, year, month), created lazily, never deleted
  2. All counter mutation goes through a single atomic delta application
  3. Rules are addressed by role, never by hardcoded primary keys
  4. Every processed check-in is logged under its attendance event id,
     which makes the whole pipeline idempotent under retries

SEE ALSO:
  - selector.go: maps a lateness band to a rule role
  - applier.go:  converts a rule + current counters into a Delta
  - service.go:  the pipeline entry point (ProcessTardiness)
  - store.go:    persistence interfaces
*/
package tardiness

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RuleID string

// =============================================================================
// MONTH KEY - addresses one accumulation row
// =============================================================================

// MonthKey identifies the accumulation row for one employee in one
// calendar month. Counters for different keys are fully independent.
type MonthKey struct {
	EmployeeID EmployeeID
	Year       int
	Month      time.Month
}

// MonthKeyAt returns the key for the month containing t.
func MonthKeyAt(employeeID EmployeeID, t time.Time) MonthKey {
	return MonthKey{EmployeeID: employeeID, Year: t.Year(), Month: t.Month()}
}

// =============================================================================
// ACCUMULATION - per-employee-per-month counters
// =============================================================================

// Accumulation holds the four monthly counters. Rows are created lazily on
// the first tardiness event of the period and only ever mutated through
// AccumulationStore.ApplyDelta.
type Accumulation struct {
	ID                 string
	EmployeeID         EmployeeID
	Year               int
	Month              time.Month
	LateArrivals       int // minor 1-15 minute events not yet converted
	DirectTardiness    int // 16+ minute events this month
	FormalTardies      int // the sanctionable unit
	AdministrativeActs int // disciplinary acts triggered this month
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a Accumulation) Key() MonthKey {
	return MonthKey{EmployeeID: a.EmployeeID, Year: a.Year, Month: a.Month}
}

// Delta is an atomic adjustment of the accumulation counters. Negative
// values reset; the threshold conversion relies on the late-arrival reset
// and the formal-tardy increment landing in the same write.
type Delta struct {
	LateArrivals       int
	DirectTardiness    int
	FormalTardies      int
	AdministrativeActs int
}

// =============================================================================
// TARDINESS RULES - read-only reference data, addressed by role
// =============================================================================

type RuleType string

const (
	RuleTypeLateArrival     RuleType = "late_arrival"
	RuleTypeDirectTardiness RuleType = "direct_tardiness"
)

// RuleRole decouples behavior from whatever primary keys the configured
// rule store uses. The selector picks a role; the repository resolves it
// to the configured rule.
type RuleRole string

const (
	RoleNormalLateArrival  RuleRole = "normal_late_arrival"
	RolePostFirstTardiness RuleRole = "post_first_tardiness"
	RoleDirectTardiness    RuleRole = "direct_tardiness"
)

// Rule is one configured tardiness conversion rule.
type Rule struct {
	ID   RuleID
	Role RuleRole
	Name string
	Type RuleType

	// AccumulationCount is the late-arrival threshold that converts into
	// formal tardies (normal late-arrival rule only).
	AccumulationCount int

	// EquivalentFormalTardies is how many formal tardies one conversion
	// or one direct event yields.
	EquivalentFormalTardies int
}

// MinorLatenessMax is the upper bound, in minutes, of the minor lateness
// band. Anything beyond it is direct tardiness.
const MinorLatenessMax = 15

// =============================================================================
// CLASSIFICATION - what one check-in amounted to
// =============================================================================

type Classification string

const (
	ClassOnTime          Classification = "on_time"
	ClassLateArrival     Classification = "late_arrival"
	ClassDirectTardiness Classification = "direct_tardiness"
	ClassFormalTardy     Classification = "formal_tardy"
)

// =============================================================================
// EVENT - append-only log of processed check-ins
// =============================================================================

// Event records the outcome of one processed attendance check-in. The
// attendance event id is unique in the log; a retry of the same check-in
// replays the stored outcome instead of touching the counters again.
type Event struct {
	ID                   string
	AttendanceID         string
	EmployeeID           EmployeeID
	MinutesLate          int
	Classification       Classification
	RuleID               RuleID
	RuleName             string
	FormalTardiesAdded   int
	DisciplinaryRecordID string
	OccurredAt           time.Time
	CreatedAt            time.Time
}

// =============================================================================
// RESULT - returned to the calling attendance workflow
// =============================================================================

// MonthCounters is the post-update counter snapshot included in a Result.
type MonthCounters struct {
	LateArrivals       int
	DirectTardiness    int
	FormalTardies      int
	AdministrativeActs int
}

// Result is the outcome of ProcessTardiness for one check-in.
type Result struct {
	AttendanceID string
	EmployeeID   EmployeeID

	// Replayed is true when the attendance event had already been
	// processed and the stored outcome was returned.
	Replayed bool

	RuleApplied        bool
	RuleID             RuleID
	RuleName           string
	AccumulationType   Classification
	FormalTardiesAdded int
	CurrentMonthStats  MonthCounters

	DisciplinaryActionTriggered bool
	DisciplinaryActionID        string
	TerminationProposed         bool
	TerminationProposalID       string
}

func countersOf(a Accumulation) MonthCounters {
	return MonthCounters{
		LateArrivals:       a.LateArrivals,
		DirectTardiness:    a.DirectTardiness,
		FormalTardies:      a.FormalTardies,
		AdministrativeActs: a.AdministrativeActs,
	}
}
