package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update persists a new start and duration.
	Update(ctx context.Context, a *Appointment) error
	// Delete removes the appointment and returns it as it was stored.
	Delete(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListByDoctorBetween returns the doctor's appointments whose start falls
	// within [from, to], ascending by start.
	ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// List pages through appointments, optionally restricted to one doctor.
	List(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
