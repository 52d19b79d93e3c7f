/*
evaluator.go - Disciplinary trigger and termination evaluators

PURPOSE:
  Implements the two cascading checks that run after an accumulation
  update:

  1. EvaluateFormalTardies: has the month's formal-tardy count met an
     active threshold rule? Create the record (once per employee per rule
     per calendar month of the applied date), bump the month's
     administrative-acts counter, then fall through to the termination
     check.
  2. EvaluateTermination: are there enough ACTIVE/COMPLETED
     administrative acts inside the rolling window? Propose termination
     (always PENDING), unless a proposal is already outstanding.

IDEMPOTENCE:
  Both evaluators are safe to re-invoke for the same logical event. The
  existence checks run before the insert, and the store's uniqueness
  constraints close the remaining race window: a concurrent duplicate
  insert surfaces as ErrDuplicateRecord and is treated as a no-op.

THRESHOLD SELECTION:
  The trigger evaluator picks the HIGHEST active threshold the count has
  met or exceeded, not the first one crossed historically. A month
  produces at most one record per rule no matter how many further formal
  tardies accrue.
*/
package discipline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Evaluator runs the disciplinary cascade.
type Evaluator struct {
	Rules   RuleRepository
	Records RecordStore

	// Acts increments the monthly administrative-acts counter. Used only
	// when Records does not implement AtomicRecorder.
	Acts ActCounter

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Outcome reports what one cascade run created.
type Outcome struct {
	Record      *Record // administrative act (or other triggered action)
	Termination *Record // termination proposal, when the cascade reached it
}

// EvaluateFormalTardies runs the trigger check for an updated
// formal-tardy count in the given accumulation month. Returns a zero
// Outcome when no rule threshold is met or the month already has a
// record for the matched rule.
func (e *Evaluator) EvaluateFormalTardies(ctx context.Context, employeeID string, formalTardies int, year int, month time.Month) (Outcome, error) {
	if formalTardies <= 0 {
		return Outcome{}, nil
	}

	rule, err := e.Rules.HighestFormalTardiesRule(ctx, formalTardies)
	if err != nil {
		return Outcome{}, err
	}
	if rule == nil {
		return Outcome{}, nil
	}

	// The once-per-month guard and the store's uniqueness constraint both
	// key off the applied date's calendar month. Deriving the guard from
	// the accumulation month would check a different month than the one
	// the constraint enforces when processing is delayed across a month
	// boundary.
	applied := e.now()
	exists, err := e.Records.ExistsForRuleInMonth(ctx, employeeID, rule.ID, applied.Year(), applied.Month())
	if err != nil {
		return Outcome{}, err
	}
	if exists {
		return Outcome{}, nil
	}

	status := StatusActive
	if rule.RequiresApproval {
		status = StatusPending
	}

	rec := Record{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		RuleID:       rule.ID,
		ActionType:   rule.ActionType,
		TriggerType:  TriggerFormalTardies,
		TriggerCount: formalTardies,
		AppliedDate:  applied,
		Status:       status,
		Description: fmt.Sprintf("%s: %d formal tardies accumulated in %04d-%02d (threshold %d)",
			rule.Name, formalTardies, year, int(month), rule.TriggerCount),
	}
	if rule.ActionType == ActionSuspension && rule.SuspensionDays > 0 {
		days := rule.SuspensionDays
		rec.SuspensionDays = &days
	}

	if err := e.createWithAct(ctx, rec, year, month); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			// A concurrent run created it first.
			return Outcome{}, nil
		}
		return Outcome{}, err
	}

	termination, err := e.EvaluateTermination(ctx, employeeID)
	if err != nil {
		return Outcome{Record: &rec}, err
	}
	return Outcome{Record: &rec, Termination: termination}, nil
}

// createWithAct persists the record and the administrative-acts counter
// bump, transactionally when the store supports it.
func (e *Evaluator) createWithAct(ctx context.Context, rec Record, year int, month time.Month) error {
	if atomic, ok := e.Records.(AtomicRecorder); ok {
		return atomic.CreateWithActIncrement(ctx, rec, year, month)
	}
	if err := e.Records.Create(ctx, rec); err != nil {
		return err
	}
	if e.Acts == nil {
		return nil
	}
	return e.Acts.IncrementAdministrativeActs(ctx, rec.EmployeeID, year, month)
}

// EvaluateTermination runs the rolling-window check and proposes
// termination when it is met. Returns nil when no rule is configured,
// the window count is short, or a proposal is already outstanding.
func (e *Evaluator) EvaluateTermination(ctx context.Context, employeeID string) (*Record, error) {
	rule, err := e.Rules.AdministrativeActsRule(ctx)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}

	until := e.now()
	since := until.AddDate(0, 0, -rule.PeriodDays)
	count, err := e.Records.CountAdministrativeActs(ctx, employeeID, since, until)
	if err != nil {
		return nil, err
	}
	if count < rule.TriggerCount {
		return nil, nil
	}

	open, err := e.Records.HasOpenTermination(ctx, employeeID, rule.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, nil
	}

	rec := Record{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		RuleID:       rule.ID,
		ActionType:   ActionTermination,
		TriggerType:  TriggerAdministrativeActs,
		TriggerCount: count,
		AppliedDate:  until,
		// Termination always goes through approval, regardless of the
		// rule's own flag.
		Status: StatusPending,
		Description: fmt.Sprintf("%s: %d administrative acts within %d days (threshold %d)",
			rule.Name, count, rule.PeriodDays, rule.TriggerCount),
	}

	if err := e.Records.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// History returns the most recent disciplinary records for an employee.
// Read-only; used by the reporting API.
func (e *Evaluator) History(ctx context.Context, employeeID string, limit int) ([]Record, error) {
	return e.Records.ListByEmployee(ctx, employeeID, limit)
}
