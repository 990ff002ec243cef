package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, subject_id, image_ref, classification, confidence, threshold, risk_level, status,
       summary, performed_by, created_at, reviewed_by, review_notes, treatment_plan, reviewed_at`

// Create insert record baru, ID digenerate di sini
func (r *AnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
	const q = `
INSERT INTO analysis_records
(id, subject_id, image_ref, classification, confidence, threshold, risk_level, status,
 summary, performed_by, created_at, reviewed_by, review_notes, treatment_plan, reviewed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`
	id := rec.ID
	if id == "" {
		id = domain.RecordID(uuid.NewString())
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		id, rec.SubjectID, rec.ImageRef, string(rec.Classification), rec.Confidence, rec.Threshold,
		string(rec.RiskLevel), string(rec.Status), rec.Summary, rec.PerformedBy, created,
		rec.ReviewedBy, rec.ReviewNotes, rec.TreatmentPlan, nullTime(rec.ReviewedAt),
	)
	if err != nil {
		return err
	}
	rec.ID = id
	rec.CreatedAt = created
	return nil
}

// Get by ID
func (r *AnalysisRepository) Get(ctx context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
	q := `SELECT ` + analysisColumns + ` FROM analysis_records WHERE id=? LIMIT 1;`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// ApplyReview cuma update kolom review, conditional on the stored reviewer
func (r *AnalysisRepository) ApplyReview(ctx context.Context, id domain.RecordID, expectedReviewer string, rv domain.Review) error {
	const q = `
UPDATE analysis_records
SET reviewed_by = ?, review_notes = ?, treatment_plan = ?, reviewed_at = ?
WHERE id = ? AND reviewed_by = ?;`
	res, err := r.db.ExecContext(ctx, q,
		rv.ReviewedBy, rv.ReviewNotes, rv.TreatmentPlan, rv.ReviewedAt,
		id, expectedReviewer,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// connection runs with clientFoundRows, so 0 means the filter missed
	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM analysis_records WHERE id=?);`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrReviewConflict
}

func (r *AnalysisRepository) FindBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.list(ctx, `subject_id=?`, limit, subjectID)
}

func (r *AnalysisRepository) FindByPerformer(ctx context.Context, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.list(ctx, `performed_by=?`, limit, performedBy)
}

func (r *AnalysisRepository) FindBySubjectAndPerformer(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.list(ctx, `subject_id=? AND performed_by=?`, limit, subjectID, performedBy)
}

func (r *AnalysisRepository) FindByReviewer(ctx context.Context, reviewerID string, limit int) ([]*domain.AnalysisRecord, error) {
	return r.list(ctx, `reviewed_by=?`, limit, reviewerID)
}

func (r *AnalysisRepository) list(ctx context.Context, where string, limit int, args ...any) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + analysisColumns + ` FROM analysis_records WHERE ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary counts records created since the cutoff
func (r *AnalysisRepository) Summary(ctx context.Context, since time.Time) (domain.Summary, error) {
	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN classification = 'abnormal' THEN 1 ELSE 0 END),0) AS abnormal,
       COALESCE(SUM(CASE WHEN reviewed_by <> '' THEN 1 ELSE 0 END),0)           AS reviewed
FROM analysis_records
WHERE created_at >= ?;
`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, since).Scan(&s.Total, &s.Abnormal, &s.Reviewed); err != nil {
		return domain.Summary{}, err
	}
	s.Pending = s.Total - s.Reviewed
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	var reviewedAt sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.SubjectID, &rec.ImageRef, &rec.Classification, &rec.Confidence, &rec.Threshold,
		&rec.RiskLevel, &rec.Status, &rec.Summary, &rec.PerformedBy, &rec.CreatedAt,
		&rec.ReviewedBy, &rec.ReviewNotes, &rec.TreatmentPlan, &reviewedAt,
	); err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	return &rec, nil
}
