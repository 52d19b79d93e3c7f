package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/store/sqlite"
	"github.com/atlashr/discipline-engine/tardiness"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func marchKey(employeeID string) tardiness.MonthKey {
	return tardiness.MonthKey{EmployeeID: tardiness.EmployeeID(employeeID), Year: 2026, Month: time.March}
}

func testEvent(attendanceID, employeeID string, minutes int) tardiness.Event {
	return tardiness.Event{
		ID:             "ev-" + attendanceID,
		AttendanceID:   attendanceID,
		EmployeeID:     tardiness.EmployeeID(employeeID),
		MinutesLate:    minutes,
		Classification: tardiness.ClassLateArrival,
		RuleID:         "rule-normal",
		RuleName:       "Minor late arrival",
		OccurredAt:     time.Date(2026, time.March, 9, 8, 10, 0, 0, time.UTC),
	}
}

func testRecord(id, employeeID string, appliedDate time.Time, status discipline.Status) discipline.Record {
	return discipline.Record{
		ID:           id,
		EmployeeID:   employeeID,
		RuleID:       "disc-act-5",
		ActionType:   discipline.ActionAdministrativeAct,
		TriggerType:  discipline.TriggerFormalTardies,
		TriggerCount: 5,
		AppliedDate:  appliedDate,
		Status:       status,
	}
}

// =============================================================================
// ACCUMULATIONS
// =============================================================================

func TestGetOrCreate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Zero(t, first.LateArrivals)

	second, err := store.GetOrCreate(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second call must fetch, not insert")
}

func TestGet_MissingRow(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Get(context.Background(), marchKey("emp-none"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyDelta_AllCountersInOneWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, marchKey("emp-1"))
	require.NoError(t, err)

	_, err = store.ApplyDelta(ctx, marchKey("emp-1"), tardiness.Delta{LateArrivals: 3})
	require.NoError(t, err)

	// The threshold conversion: reset and convert atomically.
	updated, err := store.ApplyDelta(ctx, marchKey("emp-1"), tardiness.Delta{LateArrivals: -3, FormalTardies: 1})
	require.NoError(t, err)

	assert.Zero(t, updated.LateArrivals)
	assert.Equal(t, 1, updated.FormalTardies)
}

func TestApplyDelta_MissingRow(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ApplyDelta(context.Background(), marchKey("emp-none"), tardiness.Delta{LateArrivals: 1})
	assert.ErrorIs(t, err, tardiness.ErrAccumulationNotFound)
}

func TestApplyDeltaRecording_DuplicateRollsBack(t *testing.T) {
	// GIVEN: an event already recorded under this attendance id
	// WHEN: a second delta arrives with the same id
	// THEN: ErrDuplicateEvent, and the counter delta is rolled back too

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, marchKey("emp-1"))
	require.NoError(t, err)

	_, err = store.ApplyDeltaRecording(ctx, marchKey("emp-1"),
		tardiness.Delta{LateArrivals: 1}, testEvent("att-1", "emp-1", 10))
	require.NoError(t, err)

	dup := testEvent("att-1", "emp-1", 10)
	dup.ID = "ev-other"
	_, err = store.ApplyDeltaRecording(ctx, marchKey("emp-1"), tardiness.Delta{LateArrivals: 1}, dup)
	assert.ErrorIs(t, err, tardiness.ErrDuplicateEvent)

	acc, found, err := store.Get(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, acc.LateArrivals, "failed transaction must not leave a partial delta")
}

func TestIncrementAdministrativeActs_CreatesRowWhenMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.IncrementAdministrativeActs(ctx, "emp-1", 2026, time.March)
	require.NoError(t, err)

	acc, found, err := store.Get(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, acc.AdministrativeActs)
}

// =============================================================================
// EVENT LOG
// =============================================================================

func TestEventLog_FindAndAttach(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, testEvent("att-1", "emp-1", 10)))

	ev, err := store.Find(ctx, "att-1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 10, ev.MinutesLate)
	assert.Empty(t, ev.DisciplinaryRecordID)

	require.NoError(t, store.AttachDisciplinaryRecord(ctx, "att-1", "rec-9"))

	ev, err = store.Find(ctx, "att-1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "rec-9", ev.DisciplinaryRecordID)
}

func TestEventLog_FindMissing(t *testing.T) {
	store := newTestStore(t)

	ev, err := store.Find(context.Background(), "att-none")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestEventLog_ListMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, day := range []int{12, 3, 25} {
		ev := testEvent([]string{"att-a", "att-b", "att-c"}[i], "emp-1", 10)
		ev.OccurredAt = time.Date(2026, time.March, day, 8, 10, 0, 0, time.UTC)
		require.NoError(t, store.Record(ctx, ev))
	}
	// A different month stays out of the listing.
	april := testEvent("att-apr", "emp-1", 10)
	april.OccurredAt = time.Date(2026, time.April, 1, 8, 10, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, april))

	events, err := store.ListMonth(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "att-b", events[0].AttendanceID, "oldest first")
	assert.Equal(t, "att-c", events[2].AttendanceID)
}

// =============================================================================
// RULE REPOSITORIES
// =============================================================================

func TestTardinessRules_SeedAndResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rules := []tardiness.Rule{
		{
			ID:                      "rule-normal",
			Role:                    tardiness.RoleNormalLateArrival,
			Name:                    "Minor late arrival",
			Type:                    tardiness.RuleTypeLateArrival,
			AccumulationCount:       4,
			EquivalentFormalTardies: 1,
		},
	}
	require.NoError(t, store.SeedTardinessRules(ctx, rules))

	rule, err := store.RuleForRole(ctx, tardiness.RoleNormalLateArrival)
	require.NoError(t, err)
	assert.Equal(t, tardiness.RuleID("rule-normal"), rule.ID)
	assert.Equal(t, 4, rule.AccumulationCount)

	// Re-seeding with changed values updates in place.
	rules[0].AccumulationCount = 3
	require.NoError(t, store.SeedTardinessRules(ctx, rules))

	rule, err = store.RuleForRole(ctx, tardiness.RoleNormalLateArrival)
	require.NoError(t, err)
	assert.Equal(t, 3, rule.AccumulationCount)

	listed, err := store.ListTardinessRules(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRuleForRole_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RuleForRole(context.Background(), tardiness.RoleDirectTardiness)
	assert.ErrorIs(t, err, tardiness.ErrRuleNotFound)
}

func TestHighestFormalTardiesRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedDisciplinaryRules(ctx, []discipline.Rule{
		{ID: "disc-5", Name: "At five", TriggerType: discipline.TriggerFormalTardies,
			TriggerCount: 5, ActionType: discipline.ActionAdministrativeAct, Active: true},
		{ID: "disc-8", Name: "At eight", TriggerType: discipline.TriggerFormalTardies,
			TriggerCount: 8, ActionType: discipline.ActionSuspension, SuspensionDays: 3, Active: true},
		{ID: "disc-off", Name: "Disabled", TriggerType: discipline.TriggerFormalTardies,
			TriggerCount: 2, ActionType: discipline.ActionWarning, Active: false},
	}))

	rule, err := store.HighestFormalTardiesRule(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, rule, "inactive rules never match")

	rule, err = store.HighestFormalTardiesRule(ctx, 6)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "disc-5", rule.ID)

	rule, err = store.HighestFormalTardiesRule(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "disc-8", rule.ID, "highest threshold met wins")
	assert.Equal(t, 3, rule.SuspensionDays)
}

func TestAdministrativeActsRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule, err := store.AdministrativeActsRule(ctx)
	require.NoError(t, err)
	assert.Nil(t, rule)

	require.NoError(t, store.SeedDisciplinaryRules(ctx, []discipline.Rule{
		{ID: "disc-term", Name: "Termination", TriggerType: discipline.TriggerAdministrativeActs,
			TriggerCount: 3, PeriodDays: 90, ActionType: discipline.ActionTermination,
			RequiresApproval: true, Active: true},
	}))

	rule, err = store.AdministrativeActsRule(ctx)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, 90, rule.PeriodDays)
}

// =============================================================================
// DISCIPLINARY RECORDS
// =============================================================================

func TestCreateRecord_OnePerRulePerMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	march10 := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, testRecord("rec-1", "emp-1", march10, discipline.StatusActive)))

	// Same employee, same rule, same month: the unique index rejects it.
	err := store.Create(ctx, testRecord("rec-2", "emp-1", march10.AddDate(0, 0, 12), discipline.StatusActive))
	assert.True(t, errors.Is(err, discipline.ErrDuplicateRecord))

	// Next month is fine.
	require.NoError(t, store.Create(ctx, testRecord("rec-3", "emp-1", march10.AddDate(0, 1, 0), discipline.StatusActive)))

	// Different employee is fine.
	require.NoError(t, store.Create(ctx, testRecord("rec-4", "emp-2", march10, discipline.StatusActive)))
}

func TestExistsForRuleInMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	march10 := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, testRecord("rec-1", "emp-1", march10, discipline.StatusActive)))

	exists, err := store.ExistsForRuleInMonth(ctx, "emp-1", "disc-act-5", 2026, time.March)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsForRuleInMonth(ctx, "emp-1", "disc-act-5", 2026, time.April)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCountAdministrativeActs_WindowAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	mk := func(id string, daysAgo int, status discipline.Status) discipline.Record {
		rec := testRecord(id, "emp-1", now.AddDate(0, 0, -daysAgo), status)
		// Distinct rules sidestep the per-month uniqueness; only the
		// action type and window matter here.
		rec.RuleID = "rule-" + id
		return rec
	}

	require.NoError(t, store.Create(ctx, mk("in-active", 10, discipline.StatusActive)))
	require.NoError(t, store.Create(ctx, mk("in-completed", 40, discipline.StatusCompleted)))
	require.NoError(t, store.Create(ctx, mk("in-cancelled", 50, discipline.StatusCancelled)))
	require.NoError(t, store.Create(ctx, mk("in-pending", 60, discipline.StatusPending)))
	require.NoError(t, store.Create(ctx, mk("outside", 120, discipline.StatusActive)))

	count, err := store.CountAdministrativeActs(ctx, "emp-1", now.AddDate(0, 0, -90), now)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only ACTIVE/COMPLETED inside the window count")
}

func TestHasOpenTermination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := discipline.Record{
		ID:          "term-1",
		EmployeeID:  "emp-1",
		RuleID:      "disc-term",
		ActionType:  discipline.ActionTermination,
		TriggerType: discipline.TriggerAdministrativeActs,
		AppliedDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Status:      discipline.StatusPending,
	}
	require.NoError(t, store.Create(ctx, rec))

	open, err := store.HasOpenTermination(ctx, "emp-1", "disc-term")
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, store.UpdateRecordStatus(ctx, "term-1", discipline.StatusCancelled))

	open, err = store.HasOpenTermination(ctx, "emp-1", "disc-term")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestCreateWithActIncrement_Transactional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	march10 := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateWithActIncrement(ctx,
		testRecord("rec-1", "emp-1", march10, discipline.StatusActive), 2026, time.March))

	acc, found, err := store.Get(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, acc.AdministrativeActs)

	// A duplicate record must not bump the counter.
	err = store.CreateWithActIncrement(ctx,
		testRecord("rec-2", "emp-1", march10, discipline.StatusActive), 2026, time.March)
	assert.ErrorIs(t, err, discipline.ErrDuplicateRecord)

	acc, _, err = store.Get(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, acc.AdministrativeActs)
}

func TestListByEmployee_RecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := testRecord("rec-"+string(rune('a'+i)), "emp-1", base.AddDate(0, i, 0), discipline.StatusActive)
		rec.RuleID = "rule-" + string(rune('a'+i))
		require.NoError(t, store.Create(ctx, rec))
	}

	records, err := store.ListByEmployee(ctx, "emp-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-c", records[0].ID)
	assert.Equal(t, "rec-b", records[1].ID)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_ClearsEverything(t *testing.T) {
	// Reset wipes counters, events, records, and both rule tables, so an
	// integration setup can be reseeded from scratch.

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedTardinessRules(ctx, []tardiness.Rule{
		{ID: "rule-normal", Role: tardiness.RoleNormalLateArrival, Name: "Minor late arrival",
			Type: tardiness.RuleTypeLateArrival, AccumulationCount: 4, EquivalentFormalTardies: 1},
	}))
	_, err := store.GetOrCreate(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, testEvent("att-1", "emp-1", 10)))
	march10 := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, testRecord("rec-1", "emp-1", march10, discipline.StatusActive)))

	require.NoError(t, store.Reset(ctx))

	_, found, err := store.Get(ctx, marchKey("emp-1"))
	require.NoError(t, err)
	assert.False(t, found)

	ev, err := store.Find(ctx, "att-1")
	require.NoError(t, err)
	assert.Nil(t, ev)

	records, err := store.ListByEmployee(ctx, "emp-1", 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = store.RuleForRole(ctx, tardiness.RoleNormalLateArrival)
	assert.ErrorIs(t, err, tardiness.ErrRuleNotFound)
}
