package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodStartForPinsToBillingDay(t *testing.T) {
	// Payment after the billing day lands in the current month's cycle.
	assert.Equal(t, date(2025, 3, 15), periodStartFor(time.Date(2025, 3, 20, 8, 30, 0, 0, time.UTC), 15))
	// Payment before the billing day belongs to the previous month's cycle.
	assert.Equal(t, date(2025, 2, 15), periodStartFor(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), 15))
	// Exactly on the billing day at midnight.
	assert.Equal(t, date(2025, 3, 15), periodStartFor(date(2025, 3, 15), 15))
}

func TestPeriodStartForClampsShortMonths(t *testing.T) {
	// billing_day=31 in March before the 31st falls back to Feb's last day.
	assert.Equal(t, date(2025, 2, 28), periodStartFor(date(2025, 3, 5), 31))
	// Leap year.
	assert.Equal(t, date(2024, 2, 29), periodStartFor(date(2024, 3, 5), 31))
}

func TestNextCreditDateAdvancesOneMonth(t *testing.T) {
	assert.Equal(t, date(2025, 4, 15), nextCreditDate(date(2025, 3, 15), 15))
	// Clamped: Jan 31 -> Feb 28.
	assert.Equal(t, date(2025, 2, 28), nextCreditDate(date(2025, 1, 31), 31))
	// And back out of the clamp: Feb 28 -> Mar 31.
	assert.Equal(t, date(2025, 3, 31), nextCreditDate(date(2025, 2, 28), 31))
	// Year rollover.
	assert.Equal(t, date(2026, 1, 15), nextCreditDate(date(2025, 12, 20), 15))
}

func TestTwelveMonthlyStepsAreStrictlyIncreasing(t *testing.T) {
	cursor := date(2025, 1, 31)
	for i := 0; i < 12; i++ {
		next := nextCreditDate(cursor, 31)
		assert.True(t, next.After(cursor), "step %d: %v -> %v", i, cursor, next)
		cursor = next
	}
	assert.Equal(t, date(2026, 1, 31), cursor)
}
