// Package pricing turns a list price and a schedule into a resolved price breakdown.
// Everything here is pure: no I/O, no wall clock, safe for concurrent use.
package pricing

import (
	"fmt"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/timeutil"
)

// Options carries the optional order-line context of a pricing computation
type Options struct {
	// Now anchors every relative date. Required.
	Now time.Time
	// StartDate overrides the start derived from the schedule's start moment
	StartDate *time.Time
	// DownpaymentOverride replaces the schedule's configured downpayment
	DownpaymentOverride *int64
}

// ComputePricing resolves the price breakdown of listPrice sold on schedule.
// Identical inputs always produce an identical result.
func ComputePricing(listPrice int64, schedule domain.Schedule, opts Options) (domain.PricingResult, error) {
	if err := schedule.Validate(); err != nil {
		return domain.PricingResult{}, err
	}
	if listPrice < 0 {
		return domain.PricingResult{}, domain.NewDomainError(domain.ErrorCodeValidationFailed, "list price must not be negative").
			WithDetail("list_price", listPrice)
	}
	if opts.Now.IsZero() {
		return domain.PricingResult{}, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "pricing requires a now anchor")
	}
	now := opts.Now.UTC()

	downpayment, err := resolveDownpayment(schedule, opts.DownpaymentOverride)
	if err != nil {
		return domain.PricingResult{}, err
	}

	recurringPrice := listPrice - downpayment
	if recurringPrice < 0 {
		recurringPrice = 0
	}

	cycle := schedule.CycleUnit()

	start, err := resolveStartDate(now, schedule, cycle, opts.StartDate)
	if err != nil {
		return domain.PricingResult{}, err
	}

	var end *time.Time
	if schedule.HasDuration() {
		e := AddUnits(start, schedule.DurationUnit, schedule.DurationCount)
		end = &e
	}

	daysInPeriod := DaysInUnit(now, cycle)
	dayRate := RoundHalfEven(recurringPrice, int64(daysInPeriod))

	var totalProrated int64
	if schedule.PaidUpFront {
		if remaining, partial := remainingDays(now, cycle); partial {
			totalProrated = RoundHalfEven(recurringPrice*int64(remaining), int64(daysInPeriod))
		} else {
			totalProrated = recurringPrice
		}
	}

	amountDueNow := downpayment
	if schedule.PaidUpFront {
		amountDueNow = totalProrated + downpayment
	}

	return domain.PricingResult{
		SubscriptionStartDate:  start,
		SubscriptionEndDate:    end,
		ScheduleID:             schedule.ID,
		Interval:               schedule.IntervalUnit,
		IntervalCount:          schedule.IntervalCount,
		RecurringPrice:         recurringPrice,
		OriginalRecurringPrice: recurringPrice,
		Downpayment:            downpayment,
		DayRate:                dayRate,
		TotalProratedAmount:    totalProrated,
		AmountDueNow:           amountDueNow,
		PaidUpFront:            schedule.PaidUpFront,
		AutoRenew:              schedule.AutoRenew,
	}, nil
}

func resolveDownpayment(schedule domain.Schedule, override *int64) (int64, error) {
	if override == nil {
		return schedule.DownpaymentAmount, nil
	}
	if *override < 0 {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationFailed, "downpayment must not be negative").
			WithDetail("downpayment", *override)
	}
	if *override > 0 && !schedule.HasDuration() {
		return 0, domain.WrapError(domain.ErrorCodeConfigInvalidSchedule, "invalid schedule",
			fmt.Errorf("schedule %s has no duration to bill a downpayment on", schedule.ID))
	}
	return *override, nil
}

func resolveStartDate(now time.Time, schedule domain.Schedule, cycle domain.IntervalUnit, override *time.Time) (time.Time, error) {
	if override != nil {
		return override.UTC(), nil
	}

	switch schedule.StartMoment {
	case domain.StartMomentStartOfCycle:
		// the rest of the current unit is billed as the prorated amount
		periodStart := StartOfUnit(now, cycle)
		if periodStart.Equal(now) {
			return now, nil
		}
		return AddUnits(periodStart, cycle, 1), nil

	case domain.StartMomentEndOfCycle:
		return LastDayOfUnit(now, cycle), nil

	default:
		return NextCycleStartDate(now, domain.StartMomentFixed, schedule.IntervalUnit, schedule.IntervalCount, schedule.FixedStartDate)
	}
}

// remainingDays returns the days of the current period after today and whether the period is partial.
// A period entered exactly at its boundary, or a single-day period, is never partial.
func remainingDays(now time.Time, cycle domain.IntervalUnit) (int, bool) {
	if cycle == domain.IntervalUnitDay {
		return 0, false
	}
	periodStart := StartOfUnit(now, cycle)
	if periodStart.Equal(now) {
		return 0, false
	}
	elapsed := timeutil.DaysBetween(periodStart, now) + 1
	return DaysInUnit(now, cycle) - elapsed, true
}
