// Package revenue turns paid bookings into per-night income and builds the
// cached analytics reports. Everything here is pure: callers hand in a
// ledger snapshot and get payloads back.
package revenue

import "github.com/boddenberg/hatacrm/internal/domain"

// TotalNights is the number of nights of a stay. The checkout day is not a night.
// It returns 0 when a date is missing or end <= start.
func TotalNights(start, end domain.Date) int {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0
	}
	return start.DaysUntil(end)
}

// NightsInPeriod counts the nights of [start, end) whose start-of-night date
// falls inside [periodStart, periodEnd).
func NightsInPeriod(start, end, periodStart, periodEnd domain.Date) int {
	if start.IsZero() || end.IsZero() || periodStart.IsZero() || periodEnd.IsZero() {
		return 0
	}
	if !end.After(start) {
		return 0
	}
	from := domain.MaxDate(start, periodStart)
	to := domain.MinDate(end, periodEnd)
	if !to.After(from) {
		return 0
	}
	return from.DaysUntil(to)
}
