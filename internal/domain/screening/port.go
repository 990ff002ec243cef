package screening

import (
	"context"
	"time"
)

// Repository port (persistence for analysis records)
type Repository interface {
	// Create assigns r.ID.
	Create(ctx context.Context, r *AnalysisRecord) error
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id RecordID) (*AnalysisRecord, error)
	// ApplyReview writes only the review fields, and only while the stored reviewer equals
	// expectedReviewer ("" for an unreviewed record). Returns ErrReviewConflict otherwise.
	ApplyReview(ctx context.Context, id RecordID, expectedReviewer string, rv Review) error

	FindBySubject(ctx context.Context, subjectID string, limit int) ([]*AnalysisRecord, error)
	FindByPerformer(ctx context.Context, performedBy string, limit int) ([]*AnalysisRecord, error)
	FindBySubjectAndPerformer(ctx context.Context, subjectID, performedBy string, limit int) ([]*AnalysisRecord, error)
	FindByReviewer(ctx context.Context, reviewerID string, limit int) ([]*AnalysisRecord, error)
	Summary(ctx context.Context, since time.Time) (Summary, error)
}

// BlobStore port (object storage for images)
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Image sent to the classifier
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Classifier port (external model over HTTP)
type Classifier interface {
	Classify(ctx context.Context, img Image) (RawPrediction, error)
}

// FailureLog port (audit of failed stages)
type FailureLog interface {
	Save(ctx context.Context, f *Failure) error
	// ListBySubject narrows to one performer when performedBy is not empty.
	ListBySubject(ctx context.Context, subjectID, performedBy string, limit int) ([]*Failure, error)
}

// EventPublisher port
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
