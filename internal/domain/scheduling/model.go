package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Field limits for doctor and appointment text fields.
const (
	MaxNameLength           = 40
	MaxSpecializationLength = 300
	MaxNotesLength          = 500
)

// Doctor maps to the doctor table.
type Doctor struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	WorkingHours   WorkingHours `json:"working_hours"`
	Specialization *string      `db:"specialization" json:"specialization,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Appointment maps to the appointment table. Start is always UTC.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Start           time.Time `db:"start_time" json:"date"`
	DurationMinutes int       `db:"duration_minutes" json:"duration"`
	PatientName     string    `db:"patient_name" json:"patient_name"`
	AppointmentType string    `db:"appointment_type" json:"appointment_type"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the appointment length.
func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// End returns the exclusive end of the appointment.
func (a *Appointment) End() time.Time {
	return a.Start.Add(a.Duration())
}

// AppointmentView is an appointment with its doctor populated.
type AppointmentView struct {
	*Appointment
	Doctor *Doctor `json:"doctor,omitempty"`
}

// DoctorSlots is the availability of one doctor on one day.
type DoctorSlots struct {
	Doctor *Doctor     `json:"doctor"`
	Slots  []time.Time `json:"slots"`
}

// -- Requests --

type WorkingHoursRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type CreateDoctorRequest struct {
	Name           string               `json:"name"`
	WorkingHours   *WorkingHoursRequest `json:"working_hours"`
	Specialization string               `json:"specialization"`
}

type CreateAppointmentRequest struct {
	DoctorID        string `json:"doctor_id"`
	Date            string `json:"date"`
	Duration        int    `json:"duration"`
	PatientName     string `json:"patient_name"`
	AppointmentType string `json:"appointment_type"`
	Notes           string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	Date     string `json:"date"`
	Duration int    `json:"duration"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
