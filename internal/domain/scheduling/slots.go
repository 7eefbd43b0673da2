package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSlotInterval is the spacing between generated slot starts.
const DefaultSlotInterval = 30 * time.Minute

// SlotGenerator derives bookable start times from working hours and existing
// appointments. It holds no state between calls.
type SlotGenerator struct {
	Interval time.Duration
}

func NewSlotGenerator(interval time.Duration) *SlotGenerator {
	if interval <= 0 {
		interval = DefaultSlotInterval
	}
	return &SlotGenerator{Interval: interval}
}

// Generate returns the ascending start times on day at which a slot of one
// Interval fits inside working hours without overlapping any of existing.
// For overnight hours the list opens with the tail of the previous evening's
// shift that falls on day, followed by the shift that begins on day. The
// result is never nil.
func (g *SlotGenerator) Generate(wh WorkingHours, day time.Time, existing []*Appointment) []time.Time {
	slots := make([]time.Time, 0)
	if wh.IsZero() || g.Interval <= 0 {
		return slots
	}
	dayStart, _ := DayBounds(day)
	if wh.Overnight() {
		prevStart, prevEnd := wh.Window(dayStart.AddDate(0, 0, -1))
		slots = g.walk(slots, prevStart, prevEnd, dayStart, existing)
	}
	windowStart, windowEnd := wh.Window(dayStart)
	return g.walk(slots, windowStart, windowEnd, windowStart, existing)
}

// walk appends the free grid points of [start, end) that are not before from.
// The grid stays anchored at the shift start.
func (g *SlotGenerator) walk(slots []time.Time, start, end, from time.Time, existing []*Appointment) []time.Time {
	for cur := start; !cur.Add(g.Interval).After(end); cur = cur.Add(g.Interval) {
		if cur.Before(from) {
			continue
		}
		if firstOverlap(cur, cur.Add(g.Interval), existing, uuid.Nil) == nil {
			slots = append(slots, cur)
		}
	}
	return slots
}
