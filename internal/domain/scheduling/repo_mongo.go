package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docslot/docslot/internal/platform/mongodb"
)

const mongoOpTimeout = 5 * time.Second

type workingHoursDoc struct {
	Start string `bson:"start"`
	End   string `bson:"end"`
}

type doctorDoc struct {
	ID             string          `bson:"_id"`
	Name           string          `bson:"name"`
	WorkingHours   workingHoursDoc `bson:"working_hours"`
	Specialization *string         `bson:"specialization,omitempty"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

func (d *doctorDoc) toModel() (*Doctor, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("doctor _id %q: %w", d.ID, err)
	}
	wh, err := ParseWorkingHours(d.WorkingHours.Start, d.WorkingHours.End)
	if err != nil {
		return nil, fmt.Errorf("doctor %s: stored working hours: %w", d.ID, err)
	}
	return &Doctor{
		ID:             id,
		Name:           d.Name,
		WorkingHours:   wh,
		Specialization: d.Specialization,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}

type appointmentDoc struct {
	ID              string    `bson:"_id"`
	DoctorID        string    `bson:"doctor_id"`
	Start           time.Time `bson:"start"`
	DurationMinutes int       `bson:"duration"`
	PatientName     string    `bson:"patient_name"`
	AppointmentType string    `bson:"appointment_type"`
	Notes           *string   `bson:"notes,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func newAppointmentDoc(a *Appointment) *appointmentDoc {
	return &appointmentDoc{
		ID:              a.ID.String(),
		DoctorID:        a.DoctorID.String(),
		Start:           a.Start.UTC(),
		DurationMinutes: a.DurationMinutes,
		PatientName:     a.PatientName,
		AppointmentType: a.AppointmentType,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (d *appointmentDoc) toModel() (*Appointment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("appointment _id %q: %w", d.ID, err)
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("appointment %s doctor_id %q: %w", d.ID, d.DoctorID, err)
	}
	return &Appointment{
		ID:              id,
		DoctorID:        doctorID,
		Start:           d.Start.UTC(),
		DurationMinutes: d.DurationMinutes,
		PatientName:     d.PatientName,
		AppointmentType: d.AppointmentType,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}, nil
}

func mongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoMongo struct{ coll *mongo.Collection }

func NewDoctorRepoMongo(db *mongo.Database) DoctorRepository {
	return &doctorRepoMongo{coll: db.Collection(mongodb.DoctorsCollection)}
}

func (r *doctorRepoMongo) Create(ctx context.Context, d *Doctor) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	d.ID = uuid.New()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, &doctorDoc{
		ID:             d.ID.String(),
		Name:           d.Name,
		WorkingHours:   workingHoursDoc{Start: d.WorkingHours.Start.String(), End: d.WorkingHours.End.String()},
		Specialization: d.Specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return err
}

func (r *doctorRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc doctorDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	return doc.toModel()
}

func (r *doctorRepoMongo) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []doctorDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	items := make([]*Doctor, 0, len(docs))
	for i := range docs {
		d, err := docs[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, int(total), nil
}

// =========== Appointment Repository ===========

type appointmentRepoMongo struct{ coll *mongo.Collection }

func NewAppointmentRepoMongo(db *mongo.Database) AppointmentRepository {
	return &appointmentRepoMongo{coll: db.Collection(mongodb.AppointmentsCollection)}
}

func (r *appointmentRepoMongo) Create(ctx context.Context, a *Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	a.ID = uuid.New()
	a.Start = a.Start.UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, newAppointmentDoc(a))
	return err
}

func (r *appointmentRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc appointmentDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	return doc.toModel()
}

func (r *appointmentRepoMongo) Update(ctx context.Context, a *Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	a.Start = a.Start.UTC()
	a.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": a.ID.String()},
		bson.M{"$set": bson.M{
			"start":      a.Start,
			"duration":   a.DurationMinutes,
			"updated_at": a.UpdatedAt,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoMongo) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc appointmentDoc
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	return doc.toModel()
}

func (r *appointmentRepoMongo) ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	filter := bson.M{
		"doctor_id": doctorID.String(),
		"start":     bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
}

func (r *appointmentRepoMongo) List(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	filter := bson.M{}
	if doctorID != nil {
		filter["doctor_id"] = doctorID.String()
	}

	countCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	total, err := r.coll.CountDocuments(countCtx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	items, err := r.find(ctx, filter, opts)
	return items, int(total), err
}

func (r *appointmentRepoMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []appointmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]*Appointment, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}
