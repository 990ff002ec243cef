package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/application"
	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

// Service lets an assigned clinician attach a review to an analysis record.
type Service struct {
	Repo        domain.Repository
	Assignments assignment.Checker
	Events      domain.EventPublisher // optional
	Clock       application.Clock
	Logger      *zap.Logger

	// placeholder path, off unless configured
	AllowPlaceholder bool
	PlaceholderRisk  domain.RiskLevel
}

// Command untuk publish review
type Command struct {
	RecordID      domain.RecordID
	ReviewerID    string
	Notes         string
	TreatmentPlan string
}

// PublishReview writes reviewedBy, notes, plan and reviewedAt in one conditional update.
// The first review stamps reviewedAt; the same reviewer may amend later, another reviewer may not.
func (s *Service) PublishReview(ctx context.Context, cmd Command) (*domain.AnalysisRecord, error) {
	notes, plan := strings.TrimSpace(cmd.Notes), strings.TrimSpace(cmd.TreatmentPlan)
	if strings.TrimSpace(cmd.ReviewerID) == "" {
		return nil, fmt.Errorf("%w: reviewer id is required", domain.ErrValidation)
	}
	if notes == "" && plan == "" {
		return nil, fmt.Errorf("%w: notes or treatment plan is required", domain.ErrValidation)
	}

	rec, err := s.Repo.Get(ctx, cmd.RecordID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.authorize(ctx, cmd.ReviewerID, rec.SubjectID); err != nil {
		return nil, err
	}
	return s.apply(ctx, rec, cmd.ReviewerID, notes, plan)
}

// PublishReviewForSubject reviews the subject's latest record. When the subject has none and
// placeholders are enabled, a placeholder record without an image is created first.
func (s *Service) PublishReviewForSubject(ctx context.Context, subjectID string, cmd Command) (*domain.AnalysisRecord, error) {
	notes, plan := strings.TrimSpace(cmd.Notes), strings.TrimSpace(cmd.TreatmentPlan)
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(cmd.ReviewerID) == "" {
		return nil, fmt.Errorf("%w: subject and reviewer are required", domain.ErrValidation)
	}
	if notes == "" && plan == "" {
		return nil, fmt.Errorf("%w: notes or treatment plan is required", domain.ErrValidation)
	}
	if err := s.authorize(ctx, cmd.ReviewerID, subjectID); err != nil {
		return nil, err
	}

	latest, err := s.Repo.FindBySubject(ctx, subjectID, 1)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(latest) > 0 {
		return s.apply(ctx, latest[0], cmd.ReviewerID, notes, plan)
	}
	if !s.AllowPlaceholder {
		return nil, domain.ErrNotFound
	}

	risk := s.PlaceholderRisk
	if !risk.Valid() {
		risk = domain.RiskMedium
	}
	ph := &domain.AnalysisRecord{
		SubjectID: subjectID,
		RiskLevel: risk,
		Status:    domain.StatusPlaceholder,
		Summary:   "Pending",
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, ph); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	s.logger().Info("placeholder record created",
		zap.String("record_id", string(ph.ID)),
		zap.String("subject_id", subjectID),
	)
	return s.apply(ctx, ph, cmd.ReviewerID, notes, plan)
}

// apply expects the caller to have authorized reviewerID for rec.SubjectID
func (s *Service) apply(ctx context.Context, rec *domain.AnalysisRecord, reviewerID, notes, plan string) (*domain.AnalysisRecord, error) {
	if rec.Reviewed() && rec.ReviewedBy != reviewerID {
		return nil, domain.ErrReviewConflict
	}

	rv := domain.Review{
		ReviewedBy:    reviewerID,
		ReviewNotes:   notes,
		TreatmentPlan: plan,
		ReviewedAt:    s.Clock.Now(),
	}
	if rec.ReviewedAt != nil {
		rv.ReviewedAt = *rec.ReviewedAt
	}

	if err := s.Repo.ApplyReview(ctx, rec.ID, rec.ReviewedBy, rv); err != nil {
		return nil, storeErr(err)
	}

	amended := rec.Reviewed()
	rec.ReviewedBy = rv.ReviewedBy
	rec.ReviewNotes = rv.ReviewNotes
	rec.TreatmentPlan = rv.TreatmentPlan
	at := rv.ReviewedAt
	rec.ReviewedAt = &at

	s.logger().Info("review published",
		zap.String("record_id", string(rec.ID)),
		zap.String("reviewer_id", reviewerID),
		zap.Bool("amended", amended),
	)
	if s.Events != nil {
		if err := s.Events.Publish(ctx, domain.Event{
			Type:      domain.EventReviewed,
			RecordID:  rec.ID,
			SubjectID: rec.SubjectID,
			ActorID:   reviewerID,
			RiskLevel: rec.RiskLevel,
			At:        s.Clock.Now(),
		}); err != nil {
			s.logger().Warn("event publish failed", zap.String("record_id", string(rec.ID)), zap.Error(err))
		}
	}
	return rec, nil
}

// storeErr keeps the outcomes callers branch on and folds the rest into ErrPersistFailed
func storeErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrReviewConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
}

func (s *Service) authorize(ctx context.Context, reviewerID, subjectID string) error {
	ok, err := s.Assignments.IsAssigned(ctx, reviewerID, subjectID)
	if err != nil {
		return fmt.Errorf("assignment lookup: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
