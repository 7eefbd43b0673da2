package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by the booking core. The HTTP layer maps them to
// status codes with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrNoWorkingHours      = errors.New("doctor's working hours not available")
	ErrOutsideWorkingHours = errors.New("outside working hours")
	ErrSlotConflict        = errors.New("time slot unavailable")
	ErrInvalidDate         = errors.New("invalid date")
	ErrPastDate            = errors.New("cannot book appointments for past dates")
	ErrBeyondHorizon       = errors.New("date is beyond the booking horizon")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// OutsideWorkingHoursError carries the violated bounds so clients can show them.
type OutsideWorkingHoursError struct {
	WorkingHours WorkingHours
}

func (e *OutsideWorkingHoursError) Error() string {
	return fmt.Sprintf("%s (%s-%s)", ErrOutsideWorkingHours, e.WorkingHours.Start, e.WorkingHours.End)
}

func (e *OutsideWorkingHoursError) Unwrap() error { return ErrOutsideWorkingHours }

// ConflictError identifies the existing booking a proposal collides with.
// AppointmentID is uuid.Nil when the datastore rejected the write itself.
type ConflictError struct {
	AppointmentID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.AppointmentID == uuid.Nil {
		return ErrSlotConflict.Error()
	}
	return fmt.Sprintf("%s: overlaps appointment %s", ErrSlotConflict, e.AppointmentID)
}

func (e *ConflictError) Unwrap() error { return ErrSlotConflict }
