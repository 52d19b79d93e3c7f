package tardiness

import (
	"time"
)

// =============================================================================
// LATENESS CALCULATOR
// =============================================================================

// CalculateMinutesLate converts a check-in timestamp, a scheduled start
// time ("HH:MM", local to the check-in), and a grace period in minutes
// into whole minutes of lateness.
//
// The scheduled instant is built on the same calendar day as the check-in,
// the grace period is added, and the difference is truncated to whole
// minutes (no rounding up). A check-in at or before scheduled start plus
// grace returns 0; the result is never negative.
func CalculateMinutesLate(checkIn time.Time, scheduleStart string, graceMinutes int) (int, error) {
	clock, err := time.Parse("15:04", scheduleStart)
	if err != nil {
		return 0, &ScheduleTimeError{Value: scheduleStart, Err: err}
	}
	if graceMinutes < 0 {
		graceMinutes = 0
	}

	scheduled := time.Date(
		checkIn.Year(), checkIn.Month(), checkIn.Day(),
		clock.Hour(), clock.Minute(), 0, 0,
		checkIn.Location(),
	).Add(time.Duration(graceMinutes) * time.Minute)

	diff := checkIn.Sub(scheduled)
	if diff <= 0 {
		return 0, nil
	}
	return int(diff / time.Minute), nil
}
