package screening

import (
	"context"
	"time"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

// Get ambil 1 record by id
func (s *Service) Get(ctx context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
	return s.Repo.Get(ctx, id)
}

// ListBySubject newest first
func (s *Service) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	return s.Repo.FindBySubject(ctx, subjectID, clampLimit(limit))
}

func (s *Service) ListByPerformer(ctx context.Context, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return s.Repo.FindByPerformer(ctx, performedBy, clampLimit(limit))
}

// ListBySubjectForPerformer is the health worker view of a subject: only what they captured
func (s *Service) ListBySubjectForPerformer(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return s.Repo.FindBySubjectAndPerformer(ctx, subjectID, performedBy, clampLimit(limit))
}

func (s *Service) ListByReviewer(ctx context.Context, reviewerID string, limit int) ([]*domain.AnalysisRecord, error) {
	return s.Repo.FindByReviewer(ctx, reviewerID, clampLimit(limit))
}

// ListFailures returns the audit entries of failed submissions for a subject,
// narrowed to one performer when performedBy is set.
func (s *Service) ListFailures(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.Failure, error) {
	if s.Failures == nil {
		return nil, nil
	}
	return s.Failures.ListBySubject(ctx, subjectID, performedBy, clampLimit(limit))
}

// Summary rekap hasil screening N hari terakhir
func (s *Service) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	if sinceDays > 365 {
		sinceDays = 365
	}
	since := s.Clock.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	sum, err := s.Repo.Summary(ctx, since)
	if err != nil {
		return domain.Summary{}, err
	}
	sum.Pending = sum.Total - sum.Reviewed
	return sum, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
