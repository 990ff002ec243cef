package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	analysesCollection    = "cervix_analyses"
	failuresCollection    = "screening_failures"
	assignmentsCollection = "assignments"
)

// Connect opens a client, pings it and returns the named database.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	byTime := func(field string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}, {Key: "created_at", Value: -1}}}
	}
	plan := map[string][]mongo.IndexModel{
		analysesCollection: {byTime("subject_id"), byTime("performed_by"), byTime("reviewed_by")},
		failuresCollection: {byTime("subject_id")},
		assignmentsCollection: {{
			Keys:    bson.D{{Key: "doctor_id", Value: 1}, {Key: "patient_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for coll, models := range plan {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
