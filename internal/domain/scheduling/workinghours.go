package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Clock is a wall-clock time of day in 24h form, interpreted in UTC.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q: use HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return Clock{Hour: h, Minute: min}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant at this clock time on t's UTC calendar day.
func (c Clock) On(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// WorkingHours is a doctor's daily availability window. End may precede Start,
// in which case the shift runs past midnight into the next calendar day.
type WorkingHours struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// DefaultWorkingHours is applied to doctors registered without explicit hours.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{Start: Clock{Hour: 9}, End: Clock{Hour: 17}}
}

// ParseWorkingHours validates both bounds and rejects zero-length shifts.
func ParseWorkingHours(start, end string) (WorkingHours, error) {
	s, err := ParseClock(start)
	if err != nil {
		return WorkingHours{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return WorkingHours{}, err
	}
	if s == e {
		return WorkingHours{}, fmt.Errorf("working hours start and end must differ")
	}
	return WorkingHours{Start: s, End: e}, nil
}

// IsZero reports whether the hours are unset. 00:00-00:00 can never be
// registered, so the zero value doubles as "not configured".
func (w WorkingHours) IsZero() bool {
	return w == WorkingHours{}
}

// Overnight reports whether the shift crosses midnight.
func (w WorkingHours) Overnight() bool {
	return w.End.Minutes() < w.Start.Minutes()
}

// Window returns the shift that begins on day's calendar date. For overnight
// shifts the end rolls over to the following day.
func (w WorkingHours) Window(day time.Time) (time.Time, time.Time) {
	start := w.Start.On(day)
	end := w.End.On(day)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// Contains reports whether [start, end) fits inside a single shift. For
// overnight hours the shift that began the previous evening is considered too.
func (w WorkingHours) Contains(start, end time.Time) bool {
	ws, we := w.Window(start)
	if !start.Before(ws) && !end.After(we) {
		return true
	}
	if w.Overnight() {
		ws, we = w.Window(start.AddDate(0, 0, -1))
		return !start.Before(ws) && !end.After(we)
	}
	return false
}
