package main

import "time"

// monthWindow returns the half-open range of calendar days
// [first of month, first of next month) for the month now falls in when
// observed from loc.
func monthWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	local := now.In(loc)
	from = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 1, 0)
	return from, to
}
