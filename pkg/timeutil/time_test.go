package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_AlwaysUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

func TestFixedClock(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2024, 6, 15, 10, 0, 0, 0, loc)

	clock := FixedClock{At: at}
	assert.Equal(t, at.UTC(), clock.Now())
	assert.Equal(t, clock.Now(), clock.Now())
}

func TestStartOfDay(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "midnight UTC",
			input:    time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
		{
			name:     "noon UTC",
			input:    time.Date(2025, 11, 20, 12, 30, 45, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
		{
			name:     "offset zone crosses into previous UTC day",
			input:    time.Date(2025, 11, 20, 0, 30, 0, 0, time.FixedZone("UTC+2", 7200)),
			expected: "2025-11-19 00:00:00 +0000 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StartOfDay(tt.input).String())
		})
	}
}

func TestDaysInMonthAndYear(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, DaysInMonth(time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, DaysInMonth(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 366, DaysInYear(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 365, DaysInYear(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 6, 30, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 15, DaysBetween(a, b))
	assert.Equal(t, -15, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
	// DST does not exist in UTC so every day is 24h
	assert.Equal(t, 366, DaysBetween(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		months   int
		expected time.Time
	}{
		{
			name:     "plain",
			input:    time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
			months:   12,
			expected: time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "clamps to leap february",
			input:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "clamps to thirty day month",
			input:    time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "negative",
			input:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			months:   -1,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonths(tt.input, tt.months))
		})
	}
}
