package tardiness

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTHLY STATISTICS - read-only reporting
// =============================================================================

// MonthlyStats summarizes one employee-month for reporting. Derived from
// the counter row and the processed-event log; computing it has no side
// effects (no row is created for an untouched month).
type MonthlyStats struct {
	EmployeeID EmployeeID
	Year       int
	Month      time.Month

	Counters MonthCounters

	EventCount       int
	TotalMinutesLate int

	// AverageMinutesLate is exact to two decimal places. Zero when the
	// month has no events.
	AverageMinutesLate decimal.Decimal
	MaxMinutesLate     int
}

// MonthlyStats returns the tardiness summary for one employee-month.
func (s *Service) MonthlyStats(ctx context.Context, employeeID EmployeeID, month time.Month, year int) (*MonthlyStats, error) {
	key := MonthKey{EmployeeID: employeeID, Year: year, Month: month}

	stats := &MonthlyStats{
		EmployeeID:         employeeID,
		Year:               year,
		Month:              month,
		AverageMinutesLate: decimal.Zero,
	}

	acc, found, err := s.Accumulations.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		stats.Counters = countersOf(acc)
	}

	events, err := s.Events.ListMonth(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		stats.EventCount++
		stats.TotalMinutesLate += ev.MinutesLate
		if ev.MinutesLate > stats.MaxMinutesLate {
			stats.MaxMinutesLate = ev.MinutesLate
		}
	}
	if stats.EventCount > 0 {
		stats.AverageMinutesLate = decimal.NewFromInt(int64(stats.TotalMinutesLate)).
			DivRound(decimal.NewFromInt(int64(stats.EventCount)), 2)
	}
	return stats, nil
}
