package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE raised by the appointment_no_overlap exclusion constraint.
const pgExclusionViolation = "23P01"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func pgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgExclusionViolation {
		return &ConflictError{}
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ db queryable }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{db: pool} }

const doctorCols = `id, name, work_start, work_end, specialization, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d          Doctor
		start, end string
	)
	if err := row.Scan(&d.ID, &d.Name, &start, &end, &d.Specialization, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, pgErr(err)
	}
	wh, err := ParseWorkingHours(start, end)
	if err != nil {
		return nil, fmt.Errorf("doctor %s: stored working hours: %w", d.ID, err)
	}
	d.WorkingHours = wh
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO doctor (id, name, work_start, work_end, specialization)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.WorkingHours.Start.String(), d.WorkingHours.End.String(), d.Specialization,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return pgErr(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.db.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ db queryable }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{db: pool}
}

const apptCols = `id, doctor_id, start_time, duration_minutes, patient_name, appointment_type, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.DoctorID, &a.Start, &a.DurationMinutes, &a.PatientName,
		&a.AppointmentType, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, pgErr(err)
	}
	a.Start = a.Start.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Start = a.Start.UTC()
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointment (id, doctor_id, start_time, duration_minutes, end_time,
			patient_name, appointment_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.Start, a.DurationMinutes, a.End(),
		a.PatientName, a.AppointmentType, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return pgErr(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	a.Start = a.Start.UTC()
	err := r.db.QueryRow(ctx, `
		UPDATE appointment SET start_time = $2, duration_minutes = $3, end_time = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Start, a.DurationMinutes, a.End(),
	).Scan(&a.UpdatedAt)
	return pgErr(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `DELETE FROM appointment WHERE id = $1 RETURNING `+apptCols, id))
}

func (r *appointmentRepoPG) ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time`,
		doctorID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *appointmentRepoPG) List(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	where := ""
	var args []interface{}
	if doctorID != nil {
		where = ` WHERE doctor_id = $1`
		args = append(args, *doctorID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY start_time LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAppointments(rows)
	return items, total, err
}
