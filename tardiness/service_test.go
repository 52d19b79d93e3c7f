package tardiness_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/store/memory"
	"github.com/atlashr/discipline-engine/tardiness"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*tardiness.Service, *memory.Memory) {
	t.Helper()

	store := memory.New()
	store.SetTardinessRules(
		tardiness.Rule{
			ID:                      "rule-normal",
			Role:                    tardiness.RoleNormalLateArrival,
			Name:                    "Minor late arrival accumulation",
			Type:                    tardiness.RuleTypeLateArrival,
			AccumulationCount:       4,
			EquivalentFormalTardies: 1,
		},
		tardiness.Rule{
			ID:                      "rule-post-first",
			Role:                    tardiness.RolePostFirstTardiness,
			Name:                    "Late arrival after first formal tardy",
			Type:                    tardiness.RuleTypeLateArrival,
			AccumulationCount:       1,
			EquivalentFormalTardies: 1,
		},
		tardiness.Rule{
			ID:                      "rule-direct",
			Role:                    tardiness.RoleDirectTardiness,
			Name:                    "Direct tardiness",
			Type:                    tardiness.RuleTypeDirectTardiness,
			AccumulationCount:       1,
			EquivalentFormalTardies: 1,
		},
	)
	store.SetDisciplinaryRules(
		discipline.Rule{
			ID:           "disc-admin-act",
			Name:         "Administrative act at five formal tardies",
			TriggerType:  discipline.TriggerFormalTardies,
			TriggerCount: 5,
			ActionType:   discipline.ActionAdministrativeAct,
			Active:       true,
		},
		discipline.Rule{
			ID:               "disc-termination",
			Name:             "Termination proposal at three administrative acts",
			TriggerType:      discipline.TriggerAdministrativeActs,
			TriggerCount:     3,
			PeriodDays:       90,
			ActionType:       discipline.ActionTermination,
			RequiresApproval: true,
			Active:           true,
		},
	)

	evaluator := &discipline.Evaluator{
		Rules:   store,
		Records: store,
		Acts:    store,
		Now:     func() time.Time { return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC) },
	}
	service := &tardiness.Service{
		Accumulations: store,
		Rules:         store,
		Events:        store,
		Discipline:    evaluator,
	}
	return service, store
}

func marchMorning(day int) time.Time {
	return time.Date(2026, time.March, day, 8, 10, 0, 0, time.UTC)
}

func lateCheckIn(attendanceID string, day, minutes int) tardiness.ProcessInput {
	return tardiness.ProcessInput{
		AttendanceID: attendanceID,
		EmployeeID:   "emp-1",
		MinutesLate:  minutes,
		CheckInTime:  marchMorning(day),
	}
}

// =============================================================================
// ACCUMULATION SCENARIOS
// =============================================================================

func TestProcessTardiness_SingleLateArrival(t *testing.T) {
	// GIVEN: a clean month
	// WHEN: one check-in ten minutes late
	// THEN: late arrivals = 1, nothing converts

	service, _ := newTestService(t)

	res, err := service.ProcessTardiness(context.Background(), lateCheckIn("att-1", 2, 10))
	require.NoError(t, err)

	assert.True(t, res.RuleApplied)
	assert.Equal(t, tardiness.ClassLateArrival, res.AccumulationType)
	assert.Equal(t, 1, res.CurrentMonthStats.LateArrivals)
	assert.Zero(t, res.CurrentMonthStats.FormalTardies)
	assert.Zero(t, res.FormalTardiesAdded)
	assert.False(t, res.DisciplinaryActionTriggered)
}

func TestProcessTardiness_FourthLateArrivalConverts(t *testing.T) {
	// GIVEN: accumulation threshold of four
	// WHEN: four ten-minute check-ins land across the month
	// THEN: after the fourth, late arrivals reset and one formal tardy exists

	service, _ := newTestService(t)
	ctx := context.Background()

	var res *tardiness.Result
	for i := 1; i <= 4; i++ {
		var err error
		res, err = service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 10))
		require.NoError(t, err)

		if i < 4 {
			assert.Equal(t, i, res.CurrentMonthStats.LateArrivals, "check-in %d", i)
			assert.Zero(t, res.CurrentMonthStats.FormalTardies, "check-in %d", i)
		}
	}

	assert.Equal(t, tardiness.ClassFormalTardy, res.AccumulationType)
	assert.Zero(t, res.CurrentMonthStats.LateArrivals)
	assert.Equal(t, 1, res.CurrentMonthStats.FormalTardies)
	assert.Equal(t, 1, res.FormalTardiesAdded)
}

func TestProcessTardiness_ZeroToleranceAfterFirstTardy(t *testing.T) {
	// GIVEN: the employee already incurred a formal tardy this month
	// WHEN: a five-minute lateness arrives
	// THEN: it becomes a formal tardy immediately, no accumulation

	service, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 10))
		require.NoError(t, err)
	}

	res, err := service.ProcessTardiness(ctx, lateCheckIn("att-5", 5, 5))
	require.NoError(t, err)

	assert.Equal(t, tardiness.RuleID("rule-post-first"), res.RuleID)
	assert.Equal(t, tardiness.ClassFormalTardy, res.AccumulationType)
	assert.Zero(t, res.CurrentMonthStats.LateArrivals)
	assert.Equal(t, 2, res.CurrentMonthStats.FormalTardies)
}

func TestProcessTardiness_DirectTardiness(t *testing.T) {
	service, _ := newTestService(t)

	res, err := service.ProcessTardiness(context.Background(), lateCheckIn("att-1", 2, 20))
	require.NoError(t, err)

	assert.Equal(t, tardiness.ClassDirectTardiness, res.AccumulationType)
	assert.Equal(t, 1, res.CurrentMonthStats.DirectTardiness)
	assert.Equal(t, 1, res.CurrentMonthStats.FormalTardies)
	assert.Zero(t, res.CurrentMonthStats.LateArrivals)
}

func TestProcessTardiness_OnTimePersistsNothing(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	res, err := service.ProcessTardiness(ctx, lateCheckIn("att-1", 2, 0))
	require.NoError(t, err)

	assert.Equal(t, tardiness.ClassOnTime, res.AccumulationType)
	assert.False(t, res.RuleApplied)

	ev, err := store.Find(ctx, "att-1")
	require.NoError(t, err)
	assert.Nil(t, ev, "on-time check-ins must not be logged")
}

func TestProcessTardiness_MissingIDsRejected(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ProcessTardiness(context.Background(), tardiness.ProcessInput{
		EmployeeID:  "emp-1",
		MinutesLate: 10,
	})
	assert.Error(t, err)
	assert.True(t, tardiness.IsClientError(err))
}

func TestProcessTardiness_IndependentMonths(t *testing.T) {
	// Counters never carry over: three late arrivals in March leave April
	// untouched.

	service, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-mar-%d", i), i, 10))
		require.NoError(t, err)
	}

	res, err := service.ProcessTardiness(ctx, tardiness.ProcessInput{
		AttendanceID: "att-apr-1",
		EmployeeID:   "emp-1",
		MinutesLate:  10,
		CheckInTime:  time.Date(2026, time.April, 1, 8, 10, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.CurrentMonthStats.LateArrivals)
	assert.Zero(t, res.CurrentMonthStats.FormalTardies)
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestProcessTardiness_DuplicateEventReplays(t *testing.T) {
	// GIVEN: an already-processed attendance event
	// WHEN: the same event id is submitted again
	// THEN: the stored outcome returns and no counter moves

	service, store := newTestService(t)
	ctx := context.Background()

	first, err := service.ProcessTardiness(ctx, lateCheckIn("att-1", 2, 10))
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := service.ProcessTardiness(ctx, lateCheckIn("att-1", 2, 10))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.AccumulationType, second.AccumulationType)
	assert.Equal(t, first.CurrentMonthStats, second.CurrentMonthStats)

	acc, found, err := store.Get(ctx, tardiness.MonthKey{EmployeeID: "emp-1", Year: 2026, Month: time.March})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, acc.LateArrivals, "replay must not double-apply")
}

func TestProcessTardiness_ReplayPreservesDisciplinaryOutcome(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	// Five direct tardies reach the disciplinary threshold.
	var triggering *tardiness.Result
	for i := 1; i <= 5; i++ {
		var err error
		triggering, err = service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 20))
		require.NoError(t, err)
	}
	require.True(t, triggering.DisciplinaryActionTriggered)

	replayed, err := service.ProcessTardiness(ctx, lateCheckIn("att-5", 5, 20))
	require.NoError(t, err)

	assert.True(t, replayed.Replayed)
	assert.True(t, replayed.DisciplinaryActionTriggered)
	assert.Equal(t, triggering.DisciplinaryActionID, replayed.DisciplinaryActionID)
}

// =============================================================================
// CONFLICT RETRIES
// =============================================================================

// contendedAccumulations delegates to a real store but fails ApplyDelta
// with ErrConcurrentConflict a set number of times first. It does not
// implement ApplyDeltaRecording, so the pipeline takes the
// delta-then-record path and its retry loop.
type contendedAccumulations struct {
	inner    tardiness.AccumulationStore
	failures int
}

func (c *contendedAccumulations) GetOrCreate(ctx context.Context, key tardiness.MonthKey) (tardiness.Accumulation, error) {
	return c.inner.GetOrCreate(ctx, key)
}

func (c *contendedAccumulations) Get(ctx context.Context, key tardiness.MonthKey) (tardiness.Accumulation, bool, error) {
	return c.inner.Get(ctx, key)
}

func (c *contendedAccumulations) ApplyDelta(ctx context.Context, key tardiness.MonthKey, d tardiness.Delta) (tardiness.Accumulation, error) {
	if c.failures > 0 {
		c.failures--
		return tardiness.Accumulation{}, tardiness.ErrConcurrentConflict
	}
	return c.inner.ApplyDelta(ctx, key, d)
}

func TestProcessTardiness_RetriesCounterConflict(t *testing.T) {
	// GIVEN: a counter write that loses one lock race
	// WHEN: a late check-in is processed
	// THEN: the local retry lands the delta and the caller never sees
	//       the conflict

	service, store := newTestService(t)
	service.Accumulations = &contendedAccumulations{inner: store, failures: 1}
	ctx := context.Background()

	res, err := service.ProcessTardiness(ctx, lateCheckIn("att-1", 2, 10))
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Equal(t, 1, res.CurrentMonthStats.LateArrivals)

	ev, err := store.Find(ctx, "att-1")
	require.NoError(t, err)
	require.NotNil(t, ev, "the event must be logged once the retry lands")
}

func TestProcessTardiness_ConflictRetriesExhausted(t *testing.T) {
	// A conflict that never clears propagates after the bounded retries,
	// leaving no event behind.

	service, store := newTestService(t)
	service.Accumulations = &contendedAccumulations{inner: store, failures: 10}
	ctx := context.Background()

	_, err := service.ProcessTardiness(ctx, lateCheckIn("att-1", 2, 10))
	require.Error(t, err)
	assert.True(t, tardiness.IsRetryable(err))

	ev, ferr := store.Find(ctx, "att-1")
	require.NoError(t, ferr)
	assert.Nil(t, ev)
}

// =============================================================================
// DISCIPLINARY CASCADE
// =============================================================================

func TestProcessTardiness_TriggersAdministrativeAct(t *testing.T) {
	// GIVEN: a disciplinary rule at five formal tardies
	// WHEN: the fifth formal tardy of the month lands
	// THEN: exactly one administrative act is created

	service, store := newTestService(t)
	ctx := context.Background()

	var res *tardiness.Result
	for i := 1; i <= 5; i++ {
		var err error
		res, err = service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 20))
		require.NoError(t, err)

		if i < 5 {
			assert.False(t, res.DisciplinaryActionTriggered, "check-in %d", i)
		}
	}

	assert.True(t, res.DisciplinaryActionTriggered)
	assert.NotEmpty(t, res.DisciplinaryActionID)
	assert.Equal(t, 1, res.CurrentMonthStats.AdministrativeActs)

	records, err := store.ListByEmployee(ctx, "emp-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, discipline.ActionAdministrativeAct, records[0].ActionType)
	assert.Equal(t, discipline.StatusActive, records[0].Status)
	assert.Equal(t, 5, records[0].TriggerCount)
}

func TestProcessTardiness_NoSecondActWithoutHigherRule(t *testing.T) {
	// A sixth formal tardy with no higher-threshold rule configured must
	// not create a second record in the same month.

	service, store := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 20))
		require.NoError(t, err)
	}

	res, err := service.ProcessTardiness(ctx, lateCheckIn("att-6", 6, 20))
	require.NoError(t, err)

	assert.False(t, res.DisciplinaryActionTriggered)

	records, err := store.ListByEmployee(ctx, "emp-1", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDisciplinaryHistory(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i, 20))
		require.NoError(t, err)
	}

	records, err := service.DisciplinaryHistory(ctx, "emp-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "disc-admin-act", records[0].RuleID)
}

// =============================================================================
// MONTHLY STATISTICS
// =============================================================================

func TestMonthlyStats(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for i, minutes := range []int{10, 5, 20} {
		_, err := service.ProcessTardiness(ctx, lateCheckIn(fmt.Sprintf("att-%d", i), i+1, minutes))
		require.NoError(t, err)
	}

	stats, err := service.MonthlyStats(ctx, "emp-1", time.March, 2026)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.EventCount)
	assert.Equal(t, 35, stats.TotalMinutesLate)
	assert.Equal(t, "11.67", stats.AverageMinutesLate.StringFixed(2))
	assert.Equal(t, 20, stats.MaxMinutesLate)
	assert.Equal(t, 2, stats.Counters.LateArrivals)
	assert.Equal(t, 1, stats.Counters.DirectTardiness)
	assert.Equal(t, 1, stats.Counters.FormalTardies)
}

func TestMonthlyStats_UntouchedMonth(t *testing.T) {
	service, _ := newTestService(t)

	stats, err := service.MonthlyStats(context.Background(), "emp-9", time.March, 2026)
	require.NoError(t, err)

	assert.Zero(t, stats.EventCount)
	assert.Equal(t, "0.00", stats.AverageMinutesLate.StringFixed(2))
	assert.Zero(t, stats.Counters.FormalTardies)
}
