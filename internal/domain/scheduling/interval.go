package scheduling

import "time"

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) share at least one instant. Intervals that only touch at an
// endpoint do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// DayBounds returns the first and last instant of t's UTC calendar day.
// Both bounds are inclusive.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// LookupRange returns the start-time window a datastore must search to find
// every appointment that could overlap [start, end). Appointments are indexed
// by start, so the window reaches back by the longest permitted duration to
// catch bookings that began on the previous day and run past midnight.
func LookupRange(start, end time.Time, maxDuration time.Duration) (time.Time, time.Time) {
	from, _ := DayBounds(start)
	_, to := DayBounds(end)
	return from.Add(-maxDuration), to
}
