package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docslot/docslot/internal/platform/lock"
)

// DefaultHorizonDays is how far ahead slots may be listed.
const DefaultHorizonDays = 7

// Options tunes a Service. Zero values fall back to the package defaults.
type Options struct {
	SlotInterval time.Duration
	MinDuration  int
	MaxDuration  int
	HorizonDays  int
	Now          func() time.Time
	Logger       zerolog.Logger

	// LockWait bounds how long a write waits for its booking locks.
	// Zero waits until the request context ends.
	LockWait time.Duration
}

type Service struct {
	doctors      DoctorRepository
	appointments AppointmentRepository
	generator    *SlotGenerator
	validator    *BookingValidator
	locker       lock.Locker
	horizonDays  int
	lockWait     time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(doctors DoctorRepository, appts AppointmentRepository, locker lock.Locker, opts Options) *Service {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = DefaultHorizonDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		doctors:      doctors,
		appointments: appts,
		generator:    NewSlotGenerator(opts.SlotInterval),
		validator:    NewBookingValidator(opts.MinDuration, opts.MaxDuration),
		locker:       locker,
		horizonDays:  opts.HorizonDays,
		lockWait:     opts.LockWait,
		now:          func() time.Time { return opts.Now().UTC() },
		logger:       opts.Logger,
	}
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, req CreateDoctorRequest) (*Doctor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name", "doctor name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, invalid("name", "name must be at most %d characters", MaxNameLength)
	}

	wh := DefaultWorkingHours()
	if req.WorkingHours != nil {
		parsed, err := ParseWorkingHours(req.WorkingHours.Start, req.WorkingHours.End)
		if err != nil {
			return nil, invalid("working_hours", "invalid working hours: %v", err)
		}
		wh = parsed
	}

	spec := strings.TrimSpace(req.Specialization)
	if utf8.RuneCountInString(spec) > MaxSpecializationLength {
		return nil, invalid("specialization", "specialization must be at most %d characters", MaxSpecializationLength)
	}

	d := &Doctor{Name: name, WorkingHours: wh, Specialization: strPtr(spec)}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).
		Str("working_hours", wh.Start.String()+"-"+wh.End.String()).
		Msg("doctor registered")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// -- Slots --

// AvailableSlots lists the free slot starts for a doctor on date (YYYY-MM-DD,
// UTC). The date must lie between today and today plus the booking horizon.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*DoctorSlots, error) {
	doctor, err := s.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(date) == "" {
		return nil, invalid("date", "date query parameter is required")
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q, use YYYY-MM-DD", ErrInvalidDate, date)
	}

	today, _ := DayBounds(s.now())
	if day.Before(today) {
		return nil, ErrPastDate
	}
	limit := today.AddDate(0, 0, s.horizonDays)
	if day.After(limit) {
		return nil, fmt.Errorf("%w: cannot book appointments beyond %s", ErrBeyondHorizon, limit.Format("2006-01-02"))
	}

	// Slots run from the previous shift's tail at midnight to the end of the
	// shift that starts on day, which may be tomorrow.
	from, to := DayBounds(day)
	if !doctor.WorkingHours.IsZero() {
		if _, we := doctor.WorkingHours.Window(day); we.After(to) {
			to = we
		}
	}
	existing, err := s.appointments.ListByDoctorBetween(ctx, doctor.ID, from.Add(-s.validator.MaxLength()), to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	return &DoctorSlots{
		Doctor: doctor,
		Slots:  s.generator.Generate(doctor.WorkingHours, day, existing),
	}, nil
}

// -- Appointment --

func (s *Service) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*AppointmentView, error) {
	var missing []string
	if strings.TrimSpace(req.DoctorID) == "" {
		missing = append(missing, "doctor_id")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if req.Duration == 0 {
		missing = append(missing, "duration")
	}
	patient := strings.TrimSpace(req.PatientName)
	if patient == "" {
		missing = append(missing, "patient_name")
	}
	apptType := strings.TrimSpace(req.AppointmentType)
	if apptType == "" {
		missing = append(missing, "appointment_type")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Message: "missing required fields: " + strings.Join(missing, ", ")}
	}

	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		return nil, invalid("doctor_id", "invalid doctor_id")
	}
	start, err := ParseTimestamp(req.Date)
	if err != nil {
		return nil, invalid("date", "invalid date format")
	}
	if err := s.validator.ValidateFields(start, req.Duration); err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, invalid("notes", "notes must be at most %d characters", MaxNotesLength)
	}

	doctor, err := s.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		DoctorID:        doctor.ID,
		Start:           start,
		DurationMinutes: req.Duration,
		PatientName:     patient,
		AppointmentType: apptType,
		Notes:           strPtr(notes),
	}

	err = s.withDayLocks(ctx, doctor.ID, start, a.End(), func(existing []*Appointment) error {
		if err := s.validator.Validate(doctor, start, req.Duration, existing, uuid.Nil); err != nil {
			return err
		}
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		s.logRejection(err, doctor.ID, uuid.Nil)
		return nil, err
	}

	s.logger.Info().Str("doctor_id", doctor.ID.String()).Str("appointment_id", a.ID.String()).
		Time("start", a.Start).Int("duration", a.DurationMinutes).Msg("appointment booked")
	return &AppointmentView{Appointment: a, Doctor: doctor}, nil
}

// UpdateAppointment moves an appointment to a new start and duration. Both
// fields are required; the appointment does not conflict with itself.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, req UpdateAppointmentRequest) (*AppointmentView, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if strings.TrimSpace(req.Date) == "" || req.Duration == 0 {
		return nil, &ValidationError{Message: "date and duration are required"}
	}
	start, err := ParseTimestamp(req.Date)
	if err != nil {
		return nil, invalid("date", "invalid date format")
	}
	if err := s.validator.ValidateFields(start, req.Duration); err != nil {
		return nil, err
	}

	doctor, err := s.GetDoctor(ctx, a.DoctorID)
	if err != nil {
		return nil, err
	}

	end := start.Add(time.Duration(req.Duration) * time.Minute)
	err = s.withDayLocks(ctx, doctor.ID, start, end, func(existing []*Appointment) error {
		if err := s.validator.Validate(doctor, start, req.Duration, existing, a.ID); err != nil {
			return err
		}
		updated := *a
		updated.Start = start
		updated.DurationMinutes = req.Duration
		if err := s.appointments.Update(ctx, &updated); err != nil {
			return err
		}
		a = &updated
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		s.logRejection(err, doctor.ID, id)
		return nil, err
	}

	s.logger.Info().Str("doctor_id", doctor.ID.String()).Str("appointment_id", a.ID.String()).
		Time("start", a.Start).Int("duration", a.DurationMinutes).Msg("appointment rescheduled")
	return &AppointmentView{Appointment: a, Doctor: doctor}, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	s.logger.Info().Str("doctor_id", a.DoctorID.String()).Str("appointment_id", a.ID.String()).Msg("appointment canceled")
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	view := &AppointmentView{Appointment: a}
	if d, err := s.doctors.GetByID(ctx, a.DoctorID); err == nil {
		view.Doctor = d
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return view, nil
}

// ListAppointments pages through appointments with their doctors populated.
// doctorID is optional.
func (s *Service) ListAppointments(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*AppointmentView, int, error) {
	items, total, err := s.appointments.List(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	doctors := make(map[uuid.UUID]*Doctor)
	views := make([]*AppointmentView, 0, len(items))
	for _, a := range items {
		d, ok := doctors[a.DoctorID]
		if !ok {
			d, err = s.doctors.GetByID(ctx, a.DoctorID)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					return nil, 0, err
				}
				d = nil
			}
			doctors[a.DoctorID] = d
		}
		views = append(views, &AppointmentView{Appointment: a, Doctor: d})
	}
	return views, total, nil
}

// withDayLocks holds the booking locks for every day [start, end) touches,
// loads the doctor's appointments that could overlap it and runs fn.
func (s *Service) withDayLocks(ctx context.Context, doctorID uuid.UUID, start, end time.Time, fn func([]*Appointment) error) error {
	lockCtx := ctx
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}
	release, err := lock.AcquireAll(lockCtx, s.locker, lock.DayKeys(doctorID, start, end))
	if err != nil {
		return err
	}
	defer release()

	from, to := LookupRange(start, end, s.validator.MaxLength())
	existing, err := s.appointments.ListByDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	return fn(existing)
}

func (s *Service) logRejection(err error, doctorID, appointmentID uuid.UUID) {
	var (
		reason string
		ve     *ValidationError
		ce     *ConflictError
	)
	switch {
	case errors.As(err, &ce):
		reason = "conflict"
	case errors.Is(err, ErrOutsideWorkingHours):
		reason = "outside_working_hours"
	case errors.Is(err, ErrNoWorkingHours):
		reason = "no_working_hours"
	case errors.Is(err, ErrSlotConflict):
		reason = "conflict"
	case errors.As(err, &ve):
		reason = "invalid"
	case errors.Is(err, lock.ErrLockTimeout):
		reason = "lock_timeout"
	default:
		s.logger.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("booking failed")
		return
	}
	ev := s.logger.Debug().Str("doctor_id", doctorID.String()).Str("reason", reason)
	if appointmentID != uuid.Nil {
		ev = ev.Str("appointment_id", appointmentID.String())
	}
	if ce != nil && ce.AppointmentID != uuid.Nil {
		ev = ev.Str("conflicts_with", ce.AppointmentID.String())
	}
	ev.Msg("booking rejected")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 instant. Values without an offset are
// taken as UTC. The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
