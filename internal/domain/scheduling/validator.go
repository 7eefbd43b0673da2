package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Default bounds on appointment length, in minutes.
const (
	DefaultMinDuration = 15
	DefaultMaxDuration = 240
)

// BookingValidator decides whether a proposed appointment may be written.
// It does not touch storage; callers supply the doctor's nearby appointments.
type BookingValidator struct {
	MinDuration int
	MaxDuration int
}

func NewBookingValidator(minMinutes, maxMinutes int) *BookingValidator {
	if minMinutes <= 0 {
		minMinutes = DefaultMinDuration
	}
	if maxMinutes <= 0 {
		maxMinutes = DefaultMaxDuration
	}
	return &BookingValidator{MinDuration: minMinutes, MaxDuration: maxMinutes}
}

// MaxLength is the longest appointment the validator accepts.
func (v *BookingValidator) MaxLength() time.Duration {
	return time.Duration(v.MaxDuration) * time.Minute
}

// Validate checks a proposal of durationMinutes starting at start against the
// doctor's working hours and the existing appointments. The appointment with
// id exclude is ignored, which lets an update move a booking onto itself.
// Pass uuid.Nil when creating.
func (v *BookingValidator) Validate(doctor *Doctor, start time.Time, durationMinutes int, existing []*Appointment, exclude uuid.UUID) error {
	if err := v.ValidateFields(start, durationMinutes); err != nil {
		return err
	}
	if doctor == nil || doctor.WorkingHours.IsZero() {
		return ErrNoWorkingHours
	}

	start = start.UTC()
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if !doctor.WorkingHours.Contains(start, end) {
		return &OutsideWorkingHoursError{WorkingHours: doctor.WorkingHours}
	}

	if a := firstOverlap(start, end, existing, exclude); a != nil {
		return &ConflictError{AppointmentID: a.ID}
	}
	return nil
}

// ValidateFields checks the proposal on its own, before any doctor lookup.
func (v *BookingValidator) ValidateFields(start time.Time, durationMinutes int) error {
	if start.IsZero() {
		return invalid("date", "date is required")
	}
	if durationMinutes < v.MinDuration || durationMinutes > v.MaxDuration {
		return invalid("duration", "invalid duration (%d-%d minutes allowed)", v.MinDuration, v.MaxDuration)
	}
	return nil
}

// firstOverlap returns the first appointment in existing, other than exclude,
// that overlaps [start, end).
func firstOverlap(start, end time.Time, existing []*Appointment, exclude uuid.UUID) *Appointment {
	for _, a := range existing {
		if a == nil || (exclude != uuid.Nil && a.ID == exclude) {
			continue
		}
		if Overlaps(a.Start, a.End(), start, end) {
			return a
		}
	}
	return nil
}
