package domain

import (
	"fmt"
	"time"
)

// IntervalUnit defines the time unit for billing intervals and commitment durations
type IntervalUnit string

const (
	IntervalUnitDay   IntervalUnit = "day"
	IntervalUnitWeek  IntervalUnit = "week"
	IntervalUnitMonth IntervalUnit = "month"
	IntervalUnitYear  IntervalUnit = "year"
)

// Valid reports whether u is one of the supported units
func (u IntervalUnit) Valid() bool {
	switch u {
	case IntervalUnitDay, IntervalUnitWeek, IntervalUnitMonth, IntervalUnitYear:
		return true
	}
	return false
}

// StartMoment is the anchor policy for the first charge of a schedule
type StartMoment string

const (
	StartMomentStartOfCycle StartMoment = "start_of_cycle"
	StartMomentEndOfCycle   StartMoment = "end_of_cycle"
	StartMomentFixed        StartMoment = "fixed"
)

// Valid reports whether m is a supported start moment
func (m StartMoment) Valid() bool {
	switch m {
	case StartMomentStartOfCycle, StartMomentEndOfCycle, StartMomentFixed:
		return true
	}
	return false
}

// Schedule is a merchant-defined recurring billing plan attached to a sellable variant.
// Amounts are in minor currency units.
type Schedule struct {
	FixedStartDate    *time.Time   `json:"fixed_start_date,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ID                string       `json:"id"`
	ChannelID         string       `json:"channel_id"`
	Name              string       `json:"name" validate:"required,max=255"`
	IntervalUnit      IntervalUnit `json:"interval_unit" validate:"required,oneof=day week month year"`
	DurationUnit      IntervalUnit `json:"duration_unit" validate:"omitempty,oneof=day week month year"`
	StartMoment       StartMoment  `json:"start_moment" validate:"required,oneof=start_of_cycle end_of_cycle fixed"`
	IntervalCount     int          `json:"interval_count" validate:"gte=1"`
	DurationCount     int          `json:"duration_count" validate:"gte=0"`
	DownpaymentAmount int64        `json:"downpayment_amount" validate:"gte=0"`
	PaidUpFront       bool         `json:"paid_up_front"`
	AutoRenew         bool         `json:"auto_renew"`
}

// HasDuration returns true when the schedule carries a fixed commitment length
func (s *Schedule) HasDuration() bool {
	return s.DurationCount > 0 && s.DurationUnit != ""
}

// HasDownpayment returns true when a one-time downpayment is configured
func (s *Schedule) HasDownpayment() bool {
	return s.DownpaymentAmount > 0
}

// IsOneTimeCharge returns true when no recurring provider subscription is ever created for the schedule
func (s *Schedule) IsOneTimeCharge() bool {
	return s.PaidUpFront && !s.AutoRenew
}

// CycleUnit is the unit whose boundaries anchor the first charge and the proration period.
// Paid-up-front schedules with a commitment are billed per commitment, everything else per interval.
func (s *Schedule) CycleUnit() IntervalUnit {
	if s.PaidUpFront && s.HasDuration() {
		return s.DurationUnit
	}
	return s.IntervalUnit
}

// Validate checks the schedule and returns a configuration error describing the first problem found
func (s *Schedule) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return WrapError(ErrorCodeConfigInvalidSchedule, "invalid schedule", fmt.Errorf(format, args...)).
			WithDetail("schedule_id", s.ID)
	}

	if !s.IntervalUnit.Valid() {
		return invalid("unsupported interval unit %q", s.IntervalUnit)
	}
	if s.IntervalCount < 1 {
		return invalid("interval count must be at least 1, got %d", s.IntervalCount)
	}
	if s.DurationCount < 0 {
		return invalid("duration count must not be negative, got %d", s.DurationCount)
	}
	if s.DurationCount > 0 && !s.DurationUnit.Valid() {
		return invalid("unsupported duration unit %q", s.DurationUnit)
	}
	if s.DurationCount == 0 && !s.AutoRenew {
		return invalid("a schedule without a duration must auto renew")
	}
	if !s.StartMoment.Valid() {
		return invalid("unsupported start moment %q", s.StartMoment)
	}
	if s.StartMoment == StartMomentFixed && s.FixedStartDate == nil {
		return invalid("fixed start moment requires a fixed start date")
	}
	if s.DownpaymentAmount < 0 {
		return invalid("downpayment must not be negative, got %d", s.DownpaymentAmount)
	}
	if s.HasDownpayment() && !s.HasDuration() {
		return invalid("a downpayment requires a duration to derive its cadence")
	}
	return nil
}
