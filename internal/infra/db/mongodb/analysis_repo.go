package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type analysisDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	SubjectID      string             `bson:"subject_id"`
	ImageRef       string             `bson:"image_ref"`
	Classification string             `bson:"classification"`
	Confidence     float64            `bson:"confidence"`
	Threshold      float64            `bson:"threshold"`
	RiskLevel      string             `bson:"risk_level"`
	Status         string             `bson:"status"`
	Summary        string             `bson:"summary"`
	PerformedBy    string             `bson:"performed_by"`
	CreatedAt      time.Time          `bson:"created_at"`
	ReviewedBy     string             `bson:"reviewed_by"`
	ReviewNotes    string             `bson:"review_notes"`
	TreatmentPlan  string             `bson:"treatment_plan"`
	ReviewedAt     *time.Time         `bson:"reviewed_at,omitempty"`
}

func (d *analysisDoc) toDomain() *domain.AnalysisRecord {
	rec := &domain.AnalysisRecord{
		ID:             domain.RecordID(d.ID.Hex()),
		SubjectID:      d.SubjectID,
		ImageRef:       d.ImageRef,
		Classification: domain.Classification(d.Classification),
		Confidence:     d.Confidence,
		Threshold:      d.Threshold,
		RiskLevel:      domain.RiskLevel(d.RiskLevel),
		Status:         domain.Status(d.Status),
		Summary:        d.Summary,
		PerformedBy:    d.PerformedBy,
		CreatedAt:      d.CreatedAt.UTC(),
		ReviewedBy:     d.ReviewedBy,
		ReviewNotes:    d.ReviewNotes,
		TreatmentPlan:  d.TreatmentPlan,
	}
	if d.ReviewedAt != nil {
		t := d.ReviewedAt.UTC()
		rec.ReviewedAt = &t
	}
	return rec
}

// AnalysisRepository stores analysis records in the cervix_analyses collection.
type AnalysisRepository struct {
	coll *mongo.Collection
}

func NewAnalysisRepository(db *mongo.Database) *AnalysisRepository {
	return &AnalysisRepository{coll: db.Collection(analysesCollection)}
}

func (r *AnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	doc := analysisDoc{
		ID:             primitive.NewObjectID(),
		SubjectID:      rec.SubjectID,
		ImageRef:       rec.ImageRef,
		Classification: string(rec.Classification),
		Confidence:     rec.Confidence,
		Threshold:      rec.Threshold,
		RiskLevel:      string(rec.RiskLevel),
		Status:         string(rec.Status),
		Summary:        rec.Summary,
		PerformedBy:    rec.PerformedBy,
		CreatedAt:      created,
		ReviewedBy:     rec.ReviewedBy,
		ReviewNotes:    rec.ReviewNotes,
		TreatmentPlan:  rec.TreatmentPlan,
		ReviewedAt:     rec.ReviewedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	rec.ID = domain.RecordID(doc.ID.Hex())
	rec.CreatedAt = created
	return nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var doc analysisDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// ApplyReview sets only the review fields, matching on the stored reviewer.
func (r *AnalysisRepository) ApplyReview(ctx context.Context, id domain.RecordID, expectedReviewer string, rv domain.Review) error {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "reviewed_by": expectedReviewer},
		bson.M{"$set": bson.M{
			"reviewed_by":    rv.ReviewedBy,
			"review_notes":   rv.ReviewNotes,
			"treatment_plan": rv.TreatmentPlan,
			"reviewed_at":    rv.ReviewedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrReviewConflict
}

func (r *AnalysisRepository) FindBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.find(ctx, bson.M{"subject_id": subjectID}, limit)
}

func (r *AnalysisRepository) FindByPerformer(ctx context.Context, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.find(ctx, bson.M{"performed_by": performedBy}, limit)
}

func (r *AnalysisRepository) FindBySubjectAndPerformer(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.find(ctx, bson.M{"subject_id": subjectID, "performed_by": performedBy}, limit)
}

func (r *AnalysisRepository) FindByReviewer(ctx context.Context, reviewerID string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.find(ctx, bson.M{"reviewed_by": reviewerID}, limit)
}

func (r *AnalysisRepository) find(ctx context.Context, filter bson.M, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.AnalysisRecord
	for cur.Next(ctx) {
		var doc analysisDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

func (r *AnalysisRepository) Summary(ctx context.Context, since time.Time) (domain.Summary, error) {
	window := bson.M{"$gte": since}
	var s domain.Summary
	var err error
	if s.Total, err = r.coll.CountDocuments(ctx, bson.M{"created_at": window}); err != nil {
		return domain.Summary{}, err
	}
	if s.Abnormal, err = r.coll.CountDocuments(ctx, bson.M{"created_at": window, "classification": string(domain.ClassAbnormal)}); err != nil {
		return domain.Summary{}, err
	}
	if s.Reviewed, err = r.coll.CountDocuments(ctx, bson.M{"created_at": window, "reviewed_by": bson.M{"$ne": ""}}); err != nil {
		return domain.Summary{}, err
	}
	s.Pending = s.Total - s.Reviewed
	return s, nil
}
