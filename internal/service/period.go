package service

import "time"

// The period calculator: monthly cycles anchored to a billing day,
// clamped to the target month's length (billing_day=31 landing in a 30-
// or 28-day month). Every cycle boundary is pinned to midnight UTC so
// the three grant paths (first grant, recurring webhook, due-credit
// sweep) all land on the same (subscription, period_start) key.

// periodStartFor returns the most recent occurrence of billingDay at or
// before t, clamped to month length.
func periodStartFor(t time.Time, billingDay int) time.Time {
	year, month := t.Year(), t.Month()
	start := time.Date(year, month, clampDay(billingDay, year, month), 0, 0, 0, 0, time.UTC)
	if start.After(t) {
		month--
		if month < time.January {
			month = time.December
			year--
		}
		start = time.Date(year, month, clampDay(billingDay, year, month), 0, 0, 0, 0, time.UTC)
	}
	return start
}

// nextCreditDate returns the next monthly occurrence of billingDay
// strictly after from's month, clamped to the target month's length.
func nextCreditDate(from time.Time, billingDay int) time.Time {
	year, month := from.Year(), from.Month()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	return time.Date(year, month, clampDay(billingDay, year, month), 0, 0, 0, 0, time.UTC)
}

func clampDay(day int, year int, month time.Month) int {
	if last := lastDayOfMonth(year, month); day > last {
		return last
	}
	return day
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
