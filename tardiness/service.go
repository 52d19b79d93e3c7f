/*
service.go - The tardiness pipeline entry point

PURPOSE:
  ProcessTardiness runs the whole pipeline for one attendance check-in:

    replay check -> get-or-create month row -> rule selection
      -> atomic delta + event record -> disciplinary cascade

  Each invocation is synchronous and runs to completion before returning
  a Result to the caller. No background workers, no polling.

IDEMPOTENCY:
  The pipeline is keyed by the attendance event id. A retried or
  duplicated check-in finds its event in the log and gets the stored
  outcome back (Replayed=true) instead of double-applying counters. On
  replay the disciplinary cascade is re-run anyway: its own guards make
  that a no-op when the records already exist, and it closes the crash
  window between the counter write and the disciplinary check.

ERROR POLICY:
  Rule-selection and input errors abort before any write (safe to
  retry). Transient lock conflicts on the counter row are retried
  locally and never surfaced. Persistence failures propagate; the
  transactional store leaves no partial counter/event state behind.

SEE ALSO:
  - selector.go, applier.go: the stages
  - discipline/evaluator.go: the cascade
*/
package tardiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlashr/discipline-engine/discipline"
)

// maxConflictRetries bounds local retries of ErrConcurrentConflict.
const maxConflictRetries = 3

// Service wires the pipeline stages together.
type Service struct {
	Accumulations AccumulationStore
	Rules         RuleRepository
	Events        EventLog
	Discipline    *discipline.Evaluator

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ProcessInput is the sole inbound contract, invoked by the attendance
// check-in workflow once per check-in determined to be late.
type ProcessInput struct {
	AttendanceID string
	EmployeeID   EmployeeID
	MinutesLate  int

	// CheckInTime anchors the event to its accumulation month. Zero
	// means "now".
	CheckInTime time.Time
}

// ProcessTardiness converts one late check-in into counter updates and,
// when thresholds are crossed, disciplinary records.
func (s *Service) ProcessTardiness(ctx context.Context, in ProcessInput) (*Result, error) {
	if in.AttendanceID == "" || in.EmployeeID == "" {
		return nil, fmt.Errorf("%w: attendance and employee ids are required", ErrInvalidInput)
	}

	occurred := in.CheckInTime
	if occurred.IsZero() {
		occurred = s.now()
	}

	// Replay path: this attendance event was already processed.
	if ev, err := s.Events.Find(ctx, in.AttendanceID); err != nil {
		return nil, err
	} else if ev != nil {
		return s.replay(ctx, ev)
	}

	minutes := in.MinutesLate
	if minutes < 0 {
		minutes = 0
	}
	if minutes == 0 {
		// On time: no rule applies, nothing is persisted.
		return &Result{
			AttendanceID:     in.AttendanceID,
			EmployeeID:       in.EmployeeID,
			AccumulationType: ClassOnTime,
		}, nil
	}

	key := MonthKeyAt(in.EmployeeID, occurred)
	current, err := s.getOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	selector := &Selector{Rules: s.Rules}
	rule, err := selector.Select(ctx, minutes, current.FormalTardies)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &Result{
			AttendanceID:     in.AttendanceID,
			EmployeeID:       in.EmployeeID,
			AccumulationType: ClassOnTime,
		}, nil
	}

	app, err := ApplyRule(*rule, current)
	if err != nil {
		return nil, err
	}

	ev := Event{
		ID:                 uuid.NewString(),
		AttendanceID:       in.AttendanceID,
		EmployeeID:         in.EmployeeID,
		MinutesLate:        minutes,
		Classification:     app.Classification,
		RuleID:             rule.ID,
		RuleName:           rule.Name,
		FormalTardiesAdded: app.FormalTardiesAdded,
		OccurredAt:         occurred,
	}

	updated, err := s.applyRecording(ctx, key, app.Delta, ev)
	if errors.Is(err, ErrDuplicateEvent) {
		// Lost a race with a concurrent duplicate; its outcome stands.
		stored, ferr := s.Events.Find(ctx, in.AttendanceID)
		if ferr != nil {
			return nil, ferr
		}
		if stored != nil {
			return s.replay(ctx, stored)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		AttendanceID:       in.AttendanceID,
		EmployeeID:         in.EmployeeID,
		RuleApplied:        true,
		RuleID:             rule.ID,
		RuleName:           rule.Name,
		AccumulationType:   app.Classification,
		FormalTardiesAdded: app.FormalTardiesAdded,
		CurrentMonthStats:  countersOf(updated),
	}

	if err := s.cascade(ctx, in.AttendanceID, key, updated, result); err != nil {
		return nil, err
	}
	return result, nil
}

// cascade runs the disciplinary evaluators on the post-update snapshot
// and folds what they created into the result.
func (s *Service) cascade(ctx context.Context, attendanceID string, key MonthKey, updated Accumulation, result *Result) error {
	if s.Discipline == nil {
		return nil
	}

	out, err := s.Discipline.EvaluateFormalTardies(ctx, string(key.EmployeeID), updated.FormalTardies, key.Year, key.Month)
	if err != nil {
		return err
	}
	if out.Record != nil {
		result.DisciplinaryActionTriggered = true
		result.DisciplinaryActionID = out.Record.ID
		result.CurrentMonthStats.AdministrativeActs++

		// Link the record to the event so replays can report it.
		if err := s.Events.AttachDisciplinaryRecord(ctx, attendanceID, out.Record.ID); err != nil {
			return err
		}
	}
	if out.Termination != nil {
		result.TerminationProposed = true
		result.TerminationProposalID = out.Termination.ID
	}
	return nil
}

// replay reconstructs the result of an already-processed event and
// re-runs the disciplinary cascade, which is a no-op unless the original
// run crashed between the counter write and the disciplinary check.
func (s *Service) replay(ctx context.Context, ev *Event) (*Result, error) {
	key := MonthKeyAt(ev.EmployeeID, ev.OccurredAt)
	acc, _, err := s.Accumulations.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	result := &Result{
		AttendanceID:       ev.AttendanceID,
		EmployeeID:         ev.EmployeeID,
		Replayed:           true,
		RuleApplied:        true,
		RuleID:             ev.RuleID,
		RuleName:           ev.RuleName,
		AccumulationType:   ev.Classification,
		FormalTardiesAdded: ev.FormalTardiesAdded,
		CurrentMonthStats:  countersOf(acc),
	}
	if ev.DisciplinaryRecordID != "" {
		result.DisciplinaryActionTriggered = true
		result.DisciplinaryActionID = ev.DisciplinaryRecordID
		return result, nil
	}

	if s.Discipline != nil && ev.FormalTardiesAdded > 0 {
		out, err := s.Discipline.EvaluateFormalTardies(ctx, string(ev.EmployeeID), acc.FormalTardies, key.Year, key.Month)
		if err != nil {
			return nil, err
		}
		if out.Record != nil {
			result.DisciplinaryActionTriggered = true
			result.DisciplinaryActionID = out.Record.ID
			result.CurrentMonthStats.AdministrativeActs++
			if err := s.Events.AttachDisciplinaryRecord(ctx, ev.AttendanceID, out.Record.ID); err != nil {
				return nil, err
			}
		}
		if out.Termination != nil {
			result.TerminationProposed = true
			result.TerminationProposalID = out.Termination.ID
		}
	}
	return result, nil
}

// applyRecording couples the counter delta with the event record,
// transactionally when the store supports it.
func (s *Service) applyRecording(ctx context.Context, key MonthKey, d Delta, ev Event) (Accumulation, error) {
	if atomic, ok := s.Accumulations.(AtomicApplier); ok {
		var updated Accumulation
		err := s.withRetry(func() error {
			var aerr error
			updated, aerr = atomic.ApplyDeltaRecording(ctx, key, d, ev)
			return aerr
		})
		return updated, err
	}

	var updated Accumulation
	err := s.withRetry(func() error {
		var aerr error
		updated, aerr = s.Accumulations.ApplyDelta(ctx, key, d)
		return aerr
	})
	if err != nil {
		return Accumulation{}, err
	}
	return updated, s.Events.Record(ctx, ev)
}

func (s *Service) getOrCreate(ctx context.Context, key MonthKey) (Accumulation, error) {
	var acc Accumulation
	err := s.withRetry(func() error {
		var gerr error
		acc, gerr = s.Accumulations.GetOrCreate(ctx, key)
		return gerr
	})
	return acc, err
}

// withRetry re-runs fn on ErrConcurrentConflict. Conflicts that survive
// the retries propagate to the caller.
func (s *Service) withRetry(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// DisciplinaryHistory returns the most recent disciplinary records for
// an employee. Read-only.
func (s *Service) DisciplinaryHistory(ctx context.Context, employeeID EmployeeID, limit int) ([]discipline.Record, error) {
	if s.Discipline == nil {
		return nil, nil
	}
	return s.Discipline.History(ctx, string(employeeID), limit)
}
