// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/tardiness"
)

// =============================================================================
// MEMORY STORE - implements every persistence interface of the engine
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	accumulations map[tardiness.MonthKey]tardiness.Accumulation
	events        map[string]tardiness.Event // by attendance id
	records       []discipline.Record

	tardinessRules    map[tardiness.RuleRole]tardiness.Rule
	disciplinaryRules []discipline.Rule
}

func New() *Memory {
	return &Memory{
		accumulations:  make(map[tardiness.MonthKey]tardiness.Accumulation),
		events:         make(map[string]tardiness.Event),
		tardinessRules: make(map[tardiness.RuleRole]tardiness.Rule),
	}
}

// SetTardinessRules replaces the configured tardiness rules.
func (m *Memory) SetTardinessRules(rules ...tardiness.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tardinessRules = make(map[tardiness.RuleRole]tardiness.Rule, len(rules))
	for _, r := range rules {
		m.tardinessRules[r.Role] = r
	}
}

// SetDisciplinaryRules replaces the configured disciplinary rules.
func (m *Memory) SetDisciplinaryRules(rules ...discipline.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disciplinaryRules = append([]discipline.Rule(nil), rules...)
}

// =============================================================================
// ACCUMULATION STORE
// =============================================================================

func (m *Memory) GetOrCreate(_ context.Context, key tardiness.MonthKey) (tardiness.Accumulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(key), nil
}

func (m *Memory) getOrCreateLocked(key tardiness.MonthKey) tardiness.Accumulation {
	if acc, ok := m.accumulations[key]; ok {
		return acc
	}
	now := time.Now().UTC()
	acc := tardiness.Accumulation{
		ID:         uuid.NewString(),
		EmployeeID: key.EmployeeID,
		Year:       key.Year,
		Month:      key.Month,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.accumulations[key] = acc
	return acc
}

func (m *Memory) Get(_ context.Context, key tardiness.MonthKey) (tardiness.Accumulation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accumulations[key]
	return acc, ok, nil
}

func (m *Memory) ApplyDelta(_ context.Context, key tardiness.MonthKey, d tardiness.Delta) (tardiness.Accumulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDeltaLocked(key, d)
}

func (m *Memory) applyDeltaLocked(key tardiness.MonthKey, d tardiness.Delta) (tardiness.Accumulation, error) {
	acc, ok := m.accumulations[key]
	if !ok {
		return tardiness.Accumulation{}, tardiness.ErrAccumulationNotFound
	}
	acc.LateArrivals += d.LateArrivals
	acc.DirectTardiness += d.DirectTardiness
	acc.FormalTardies += d.FormalTardies
	acc.AdministrativeActs += d.AdministrativeActs
	acc.UpdatedAt = time.Now().UTC()
	m.accumulations[key] = acc
	return acc, nil
}

// ApplyDeltaRecording applies the delta and records the event under one
// lock, mirroring the SQLite transaction (tardiness.AtomicApplier).
func (m *Memory) ApplyDeltaRecording(_ context.Context, key tardiness.MonthKey, d tardiness.Delta, ev tardiness.Event) (tardiness.Accumulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[ev.AttendanceID]; exists {
		return tardiness.Accumulation{}, tardiness.ErrDuplicateEvent
	}
	updated, err := m.applyDeltaLocked(key, d)
	if err != nil {
		return tardiness.Accumulation{}, err
	}
	ev.CreatedAt = time.Now().UTC()
	m.events[ev.AttendanceID] = ev
	return updated, nil
}

func (m *Memory) IncrementAdministrativeActs(_ context.Context, employeeID string, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementActsLocked(employeeID, year, month)
	return nil
}

func (m *Memory) incrementActsLocked(employeeID string, year int, month time.Month) {
	key := tardiness.MonthKey{EmployeeID: tardiness.EmployeeID(employeeID), Year: year, Month: month}
	acc := m.getOrCreateLocked(key)
	acc.AdministrativeActs++
	acc.UpdatedAt = time.Now().UTC()
	m.accumulations[key] = acc
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (m *Memory) Find(_ context.Context, attendanceID string) (*tardiness.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ev, ok := m.events[attendanceID]; ok {
		return &ev, nil
	}
	return nil, nil
}

func (m *Memory) Record(_ context.Context, ev tardiness.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[ev.AttendanceID]; exists {
		return tardiness.ErrDuplicateEvent
	}
	ev.CreatedAt = time.Now().UTC()
	m.events[ev.AttendanceID] = ev
	return nil
}

func (m *Memory) AttachDisciplinaryRecord(_ context.Context, attendanceID, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[attendanceID]; ok {
		ev.DisciplinaryRecordID = recordID
		m.events[attendanceID] = ev
	}
	return nil
}

func (m *Memory) ListMonth(_ context.Context, key tardiness.MonthKey) ([]tardiness.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []tardiness.Event
	for _, ev := range m.events {
		k := tardiness.MonthKeyAt(ev.EmployeeID, ev.OccurredAt)
		if k == key {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
	return events, nil
}

// =============================================================================
// TARDINESS RULE REPOSITORY
// =============================================================================

func (m *Memory) RuleForRole(_ context.Context, role tardiness.RuleRole) (tardiness.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.tardinessRules[role]; ok {
		return r, nil
	}
	return tardiness.Rule{}, tardiness.ErrRuleNotFound
}

// =============================================================================
// DISCIPLINARY RULE REPOSITORY
// =============================================================================

func (m *Memory) HighestFormalTardiesRule(_ context.Context, formalTardies int) (*discipline.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *discipline.Rule
	for i := range m.disciplinaryRules {
		r := m.disciplinaryRules[i]
		if r.TriggerType != discipline.TriggerFormalTardies || !r.Active {
			continue
		}
		if r.TriggerCount > formalTardies {
			continue
		}
		if best == nil || r.TriggerCount > best.TriggerCount {
			rule := r
			best = &rule
		}
	}
	return best, nil
}

func (m *Memory) AdministrativeActsRule(_ context.Context) (*discipline.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.disciplinaryRules {
		r := m.disciplinaryRules[i]
		if r.TriggerType == discipline.TriggerAdministrativeActs && r.Active {
			rule := r
			return &rule, nil
		}
	}
	return nil, nil
}

// =============================================================================
// DISCIPLINARY RECORD STORE
// =============================================================================

func (m *Memory) Create(_ context.Context, rec discipline.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(rec)
}

func (m *Memory) createLocked(rec discipline.Record) error {
	// Enforce the one-record-per-employee/rule/month constraint the
	// SQLite unique index provides.
	if rec.TriggerType == discipline.TriggerFormalTardies {
		for _, existing := range m.records {
			if existing.EmployeeID == rec.EmployeeID &&
				existing.RuleID == rec.RuleID &&
				existing.TriggerType == discipline.TriggerFormalTardies &&
				sameMonth(existing.AppliedDate, rec.AppliedDate) {
				return discipline.ErrDuplicateRecord
			}
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, rec)
	return nil
}

// CreateWithActIncrement mirrors the SQLite transactional path
// (discipline.AtomicRecorder).
func (m *Memory) CreateWithActIncrement(_ context.Context, rec discipline.Record, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.createLocked(rec); err != nil {
		return err
	}
	m.incrementActsLocked(rec.EmployeeID, year, month)
	return nil
}

func (m *Memory) ExistsForRuleInMonth(_ context.Context, employeeID, ruleID string, year int, month time.Month) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if rec.EmployeeID == employeeID && rec.RuleID == ruleID &&
			rec.TriggerType == discipline.TriggerFormalTardies &&
			rec.AppliedDate.Year() == year && rec.AppliedDate.Month() == month {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountAdministrativeActs(_ context.Context, employeeID string, since, until time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if rec.EmployeeID != employeeID || rec.ActionType != discipline.ActionAdministrativeAct {
			continue
		}
		if rec.Status != discipline.StatusActive && rec.Status != discipline.StatusCompleted {
			continue
		}
		if rec.AppliedDate.Before(since) || rec.AppliedDate.After(until) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *Memory) HasOpenTermination(_ context.Context, employeeID, ruleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if rec.EmployeeID == employeeID && rec.RuleID == ruleID &&
			rec.ActionType == discipline.ActionTermination && rec.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListByEmployee(_ context.Context, employeeID string, limit int) ([]discipline.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []discipline.Record
	for _, rec := range m.records {
		if rec.EmployeeID == employeeID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AppliedDate.After(records[j].AppliedDate)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// UpdateRecordStatus transitions a record, standing in for the external
// approval workflow in tests.
func (m *Memory) UpdateRecordStatus(_ context.Context, recordID string, status discipline.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("record %s not found", recordID)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Compile-time interface checks.
var (
	_ tardiness.AccumulationStore = (*Memory)(nil)
	_ tardiness.AtomicApplier     = (*Memory)(nil)
	_ tardiness.RuleRepository    = (*Memory)(nil)
	_ tardiness.EventLog          = (*Memory)(nil)
	_ discipline.RuleRepository   = (*Memory)(nil)
	_ discipline.RecordStore      = (*Memory)(nil)
	_ discipline.AtomicRecorder   = (*Memory)(nil)
	_ discipline.ActCounter       = (*Memory)(nil)
)
