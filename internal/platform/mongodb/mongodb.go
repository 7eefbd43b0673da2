// Package mongodb connects to MongoDB and prepares the scheduling collections.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	DoctorsCollection      = "doctors"
	AppointmentsCollection = "appointments"
)

// Connect opens a client for uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// Pinger adapts a client to a context-only ping.
func Pinger(client *mongo.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// AppointmentIndexes are the indexes the appointment queries rely on.
func AppointmentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Overlap lookups filter by doctor and a start-time range.
		{
			Keys:    bson.D{{Key: "doctor_id", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetName("doctor_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "start", Value: 1}},
			Options: options.Index().SetName("start_idx"),
		},
	}
}

// DoctorIndexes are the indexes on the doctors collection.
func DoctorIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at_idx"),
		},
	}
}

// EnsureIndexes creates the scheduling indexes in db. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.Collection(AppointmentsCollection).Indexes().CreateMany(ctx, AppointmentIndexes()); err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}
	if _, err := db.Collection(DoctorsCollection).Indexes().CreateMany(ctx, DoctorIndexes()); err != nil {
		return fmt.Errorf("failed to create doctor indexes: %w", err)
	}
	return nil
}
