package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
)

type AssignmentRepository struct {
	coll *mongo.Collection
}

func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	return &AssignmentRepository{coll: db.Collection(assignmentsCollection)}
}

// Assign upserts on (doctor_id, patient_id); repeating it is a no-op.
func (r *AssignmentRepository) Assign(ctx context.Context, a *assignment.Assignment) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	filter := bson.M{"doctor_id": a.DoctorID, "patient_id": a.PatientID}
	update := bson.M{"$setOnInsert": bson.M{"created_at": created}}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *AssignmentRepository) IsAssigned(ctx context.Context, doctorID, patientID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"doctor_id": doctorID, "patient_id": patientID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AssignmentRepository) ListPatients(ctx context.Context, doctorID string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"patient_id": 1})
	cur, err := r.coll.Find(ctx, bson.M{"doctor_id": doctorID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var row struct {
			PatientID string `bson:"patient_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.PatientID)
	}
	return out, cur.Err()
}
