package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type failureDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SubjectID   string             `bson:"subject_id"`
	PerformedBy string             `bson:"performed_by"`
	Stage       string             `bson:"stage"`
	Message     string             `bson:"message"`
	Details     string             `bson:"details_json"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type FailureRepository struct {
	coll *mongo.Collection
}

func NewFailureRepository(db *mongo.Database) *FailureRepository {
	return &FailureRepository{coll: db.Collection(failuresCollection)}
}

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	details := f.DetailsJSON
	if details == "" {
		details = "{}"
	}
	doc := failureDoc{
		ID:          primitive.NewObjectID(),
		SubjectID:   f.SubjectID,
		PerformedBy: f.PerformedBy,
		Stage:       string(f.Stage),
		Message:     f.Message,
		Details:     details,
		CreatedAt:   created,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	f.ID = doc.ID.Hex()
	f.CreatedAt = created
	return nil
}

func (r *FailureRepository) ListBySubject(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	filter := bson.M{"subject_id": subjectID}
	if performedBy != "" {
		filter["performed_by"] = performedBy
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Failure
	for cur.Next(ctx) {
		var d failureDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &domain.Failure{
			ID:          d.ID.Hex(),
			SubjectID:   d.SubjectID,
			PerformedBy: d.PerformedBy,
			Stage:       domain.Stage(d.Stage),
			Message:     d.Message,
			DetailsJSON: d.Details,
			CreatedAt:   d.CreatedAt.UTC(),
		})
	}
	return out, cur.Err()
}
