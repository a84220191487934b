package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedule() Schedule {
	return Schedule{
		ID:            "sched_1",
		Name:          "Monthly, 12 months",
		IntervalUnit:  IntervalUnitMonth,
		IntervalCount: 1,
		DurationUnit:  IntervalUnitMonth,
		DurationCount: 12,
		StartMoment:   StartMomentStartOfCycle,
		PaidUpFront:   true,
		AutoRenew:     true,
	}
}

func TestSchedule_Validate(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr bool
	}{
		{name: "valid", mutate: func(s *Schedule) {}},
		{name: "open_ended_auto_renew", mutate: func(s *Schedule) { s.DurationCount = 0; s.DurationUnit = "" }},
		{name: "no_duration_no_renew", mutate: func(s *Schedule) { s.DurationCount = 0; s.AutoRenew = false }, wantErr: true},
		{name: "zero_interval_count", mutate: func(s *Schedule) { s.IntervalCount = 0 }, wantErr: true},
		{name: "unknown_interval", mutate: func(s *Schedule) { s.IntervalUnit = "fortnight" }, wantErr: true},
		{name: "unknown_duration_unit", mutate: func(s *Schedule) { s.DurationUnit = "decade" }, wantErr: true},
		{name: "fixed_without_date", mutate: func(s *Schedule) { s.StartMoment = StartMomentFixed }, wantErr: true},
		{name: "fixed_with_date", mutate: func(s *Schedule) { s.StartMoment = StartMomentFixed; s.FixedStartDate = &fixed }},
		{name: "unknown_start_moment", mutate: func(s *Schedule) { s.StartMoment = "whenever" }, wantErr: true},
		{name: "negative_downpayment", mutate: func(s *Schedule) { s.DownpaymentAmount = -1 }, wantErr: true},
		{name: "downpayment_without_duration", mutate: func(s *Schedule) {
			s.DownpaymentAmount = 500
			s.DurationCount = 0
			s.DurationUnit = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(&s)

			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfigurationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSchedule_IsOneTimeCharge(t *testing.T) {
	s := validSchedule()
	assert.False(t, s.IsOneTimeCharge())

	s.AutoRenew = false
	assert.True(t, s.IsOneTimeCharge())

	s.PaidUpFront = false
	assert.False(t, s.IsOneTimeCharge())
}

func TestSchedule_CycleUnit(t *testing.T) {
	s := validSchedule()
	s.IntervalUnit = IntervalUnitWeek
	s.DurationUnit = IntervalUnitYear
	assert.Equal(t, IntervalUnitYear, s.CycleUnit())

	s.PaidUpFront = false
	assert.Equal(t, IntervalUnitWeek, s.CycleUnit())
}
