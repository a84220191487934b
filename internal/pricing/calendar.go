package pricing

import (
	"fmt"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/timeutil"
)

// AddUnits moves t forward by count units. Months and years clamp to the end of shorter months.
func AddUnits(t time.Time, unit domain.IntervalUnit, count int) time.Time {
	t = t.UTC()
	switch unit {
	case domain.IntervalUnitDay:
		return t.AddDate(0, 0, count)
	case domain.IntervalUnitWeek:
		return t.AddDate(0, 0, 7*count)
	case domain.IntervalUnitMonth:
		return timeutil.AddMonths(t, count)
	case domain.IntervalUnitYear:
		return timeutil.AddMonths(t, 12*count)
	}
	return t
}

// StartOfUnit returns midnight of the first day of the unit containing t. Weeks start on Monday.
func StartOfUnit(t time.Time, unit domain.IntervalUnit) time.Time {
	day := timeutil.StartOfDay(t)
	switch unit {
	case domain.IntervalUnitWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case domain.IntervalUnitMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	case domain.IntervalUnitYear:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

// LastDayOfUnit returns midnight of the last day of the unit containing t
func LastDayOfUnit(t time.Time, unit domain.IntervalUnit) time.Time {
	start := StartOfUnit(t, unit)
	return AddUnits(start, unit, 1).AddDate(0, 0, -1)
}

// DaysInUnit returns the length in days of the unit containing t
func DaysInUnit(t time.Time, unit domain.IntervalUnit) int {
	switch unit {
	case domain.IntervalUnitWeek:
		return 7
	case domain.IntervalUnitMonth:
		return timeutil.DaysInMonth(t)
	case domain.IntervalUnitYear:
		return timeutil.DaysInYear(t)
	}
	return 1
}

// NextCycleStartDate returns the start of the cycle that begins count units after anchor.
//
//   - start_of_cycle: first day of the unit containing anchor + count units
//   - end_of_cycle: last day of the unit containing anchor + (count-1) units
//   - fixed: fixedDate, advanced by whole multiples of count units until it is not before anchor
//
// The result depends only on its arguments.
func NextCycleStartDate(anchor time.Time, moment domain.StartMoment, unit domain.IntervalUnit, count int, fixedDate *time.Time) (time.Time, error) {
	if !unit.Valid() {
		return time.Time{}, domain.WrapError(domain.ErrorCodeConfigInvalidSchedule, "invalid cycle",
			fmt.Errorf("unsupported unit %q", unit))
	}
	if count < 1 {
		return time.Time{}, domain.WrapError(domain.ErrorCodeConfigInvalidSchedule, "invalid cycle",
			fmt.Errorf("count must be at least 1, got %d", count))
	}
	anchor = anchor.UTC()

	switch moment {
	case domain.StartMomentStartOfCycle:
		return StartOfUnit(AddUnits(anchor, unit, count), unit), nil

	case domain.StartMomentEndOfCycle:
		return LastDayOfUnit(AddUnits(anchor, unit, count-1), unit), nil

	case domain.StartMomentFixed:
		if fixedDate == nil {
			return time.Time{}, domain.WrapError(domain.ErrorCodeConfigInvalidSchedule, "invalid cycle",
				fmt.Errorf("fixed start moment requires a fixed date"))
		}
		fixed := fixedDate.UTC()
		next := fixed
		// Always step from the original date so month clamping does not drift the day of month.
		for k := 1; next.Before(anchor); k++ {
			next = AddUnits(fixed, unit, k*count)
		}
		return next, nil
	}

	return time.Time{}, domain.WrapError(domain.ErrorCodeConfigInvalidSchedule, "invalid cycle",
		fmt.Errorf("unsupported start moment %q", moment))
}
