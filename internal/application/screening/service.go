package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/application"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

// Service implements the upload-and-classify workflow and the read side of analysis records.
// Service is safe for concurrent use; it holds no per-request state.
type Service struct {
	Repo       domain.Repository
	Blobs      domain.BlobStore
	Classifier domain.Classifier
	Failures   domain.FailureLog     // optional
	Events     domain.EventPublisher // optional
	Clock      application.Clock
	Limits     Limits
	Logger     *zap.Logger
}

//
// ==== USE CASES ====
//

// SubmitCommand untuk satu screening
type SubmitCommand struct {
	Image       []byte
	Filename    string
	ContentType string
	SubjectID   string
	PerformedBy string
	Progress    domain.ProgressFunc
}

// SubmitScreening validates → uploads → classifies → saves, strictly in that order.
// A failure at any stage returns a *domain.StageError and no record is created.
func (s *Service) SubmitScreening(ctx context.Context, cmd SubmitCommand) (*domain.AnalysisRecord, error) {
	log := s.logger().With(
		zap.String("subject_id", cmd.SubjectID),
		zap.String("performed_by", cmd.PerformedBy),
	)
	progress := func(st domain.Stage) {
		log.Debug(st.Message(), zap.String("stage", string(st)))
		if cmd.Progress != nil {
			cmd.Progress(st)
		}
	}

	progress(domain.StageValidating)
	mediaType, err := s.Limits.withDefaults().validate(cmd)
	if err != nil {
		return nil, s.fail(ctx, log, cmd, "", progress, domain.NewStageError(domain.StageValidating, domain.ErrValidation, err))
	}

	// upload dulu, imageRef wajib ada sebelum classify
	progress(domain.StageUploading)
	key := BlobKey(cmd.SubjectID, cmd.Filename, s.Clock.Now())
	imageRef, err := s.Blobs.Put(ctx, key, cmd.Image, mediaType)
	if err == nil && strings.TrimSpace(imageRef) == "" {
		err = errors.New("blob store returned an empty reference")
	}
	if err != nil {
		return nil, s.fail(ctx, log, cmd, "", progress, domain.NewStageError(domain.StageUploading, kindFor(ctx, err, domain.ErrUploadFailed), err))
	}
	log = log.With(zap.String("image_ref", imageRef))

	// classifier dipanggil sekali, tanpa retry
	progress(domain.StageClassifying)
	raw, err := s.Classifier.Classify(ctx, domain.Image{
		Filename:    filenameOrDefault(cmd.Filename),
		ContentType: mediaType,
		Data:        cmd.Image,
	})
	if err != nil {
		return nil, s.fail(ctx, log, cmd, imageRef, progress, domain.NewStageError(domain.StageClassifying, classifyKind(ctx, err), err))
	}
	res, err := domain.NewResult(raw)
	if err != nil {
		return nil, s.fail(ctx, log, cmd, imageRef, progress, domain.NewStageError(domain.StageClassifying, domain.ErrClassificationFailed, err))
	}

	// no record after cancellation
	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, log, cmd, imageRef, progress, domain.NewStageError(domain.StageSaving, domain.ErrCanceled, err))
	}

	progress(domain.StageSaving)
	rec := &domain.AnalysisRecord{
		SubjectID:      cmd.SubjectID,
		ImageRef:       imageRef,
		Classification: res.Classification,
		Confidence:     res.Confidence,
		Threshold:      res.Threshold,
		RiskLevel:      res.RiskLevel,
		Status:         domain.StatusClassified,
		Summary:        res.SummaryText(),
		PerformedBy:    cmd.PerformedBy,
		CreatedAt:      s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return nil, s.fail(ctx, log, cmd, imageRef, progress, domain.NewStageError(domain.StageSaving, kindFor(ctx, err, domain.ErrPersistFailed), err))
	}

	progress(domain.StageDone)
	log.Info("screening recorded",
		zap.String("record_id", string(rec.ID)),
		zap.String("classification", string(rec.Classification)),
		zap.Float64("confidence", rec.Confidence),
	)

	s.publish(ctx, domain.Event{
		Type:      domain.EventCreated,
		RecordID:  rec.ID,
		SubjectID: rec.SubjectID,
		ActorID:   rec.PerformedBy,
		RiskLevel: rec.RiskLevel,
		At:        rec.CreatedAt,
	})
	return rec, nil
}

// fail reports the stage failure and writes an audit entry for network-touching stages.
func (s *Service) fail(ctx context.Context, log *zap.Logger, cmd SubmitCommand, imageRef string, progress domain.ProgressFunc, se *domain.StageError) error {
	progress(domain.StageFailed)
	log.Warn("screening failed",
		zap.String("stage", string(se.Stage)),
		zap.Error(se),
		zap.Int("upstream_status", se.UpstreamStatus),
	)
	if se.Stage == domain.StageValidating || s.Failures == nil {
		return se
	}

	// imageRef is set when the blob was stored but nothing references it
	details, _ := json.Marshal(map[string]any{
		"imageRef":       imageRef,
		"kind":           se.Kind.Error(),
		"upstreamStatus": se.UpstreamStatus,
		"upstreamBody":   se.UpstreamBody,
	})
	// tetap dicatat walaupun request sudah dibatalkan
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Failures.Save(auditCtx, &domain.Failure{
		SubjectID:   cmd.SubjectID,
		PerformedBy: cmd.PerformedBy,
		Stage:       se.Stage,
		Message:     se.Error(),
		DetailsJSON: string(details),
		CreatedAt:   s.Clock.Now(),
	}); err != nil {
		log.Error("failed to record screening failure", zap.Error(err))
	}
	return se
}

func (s *Service) publish(ctx context.Context, e domain.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		s.logger().Warn("event publish failed",
			zap.String("event_type", e.Type),
			zap.String("record_id", string(e.RecordID)),
			zap.Error(err),
		)
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// BlobKey namespaces the object by subject and a time-plus-random prefix.
func BlobKey(subjectID, filename string, now time.Time) string {
	return fmt.Sprintf("cervix-images/%s/%d-%s-%s",
		sanitizeSegment(subjectID),
		now.UnixMilli(),
		uuid.NewString()[:8],
		sanitizeSegment(filenameOrDefault(filename)),
	)
}

func filenameOrDefault(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "cervix.jpg"
	}
	return name
}

func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}

func kindFor(ctx context.Context, err, fallback error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return domain.ErrCanceled
	}
	return fallback
}

func classifyKind(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.ErrCanceled
	case errors.Is(err, domain.ErrClassificationTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrClassificationTimeout
	}
	return domain.ErrClassificationFailed
}
