package postgres

import (
    "context"
    "database/sql"
    "errors"
    "strconv"
    "time"

    "github.com/google/uuid"

    domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type AnalysisRepository struct { db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

const analysisColumns = `id, subject_id, image_ref, classification, confidence, threshold, risk_level, status,
       summary, performed_by, created_at, reviewed_by, review_notes, treatment_plan, reviewed_at`

func (r *AnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
    const q = `
INSERT INTO analysis_records
(id, subject_id, image_ref, classification, confidence, threshold, risk_level, status,
 summary, performed_by, created_at, reviewed_by, review_notes, treatment_plan, reviewed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,
        $9,$10,$11,$12,$13,$14,$15);`
    id := rec.ID
    if id == "" {
        id = domain.RecordID(uuid.NewString())
    }
    created := rec.CreatedAt
    if created.IsZero() { created = time.Now().UTC() }

    _, err := r.db.ExecContext(ctx, q,
        string(id), rec.SubjectID, rec.ImageRef, string(rec.Classification), rec.Confidence, rec.Threshold,
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

func (r *AnalysisRepository) Get(ctx context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
    // ids that are not UUIDs can never match, and postgres would reject the cast
    if _, err := uuid.Parse(string(id)); err != nil {
        return nil, domain.ErrNotFound
    }
    q := `SELECT ` + analysisColumns + ` FROM analysis_records WHERE id=$1 LIMIT 1;`
    rec, err := scanRecord(r.db.QueryRowContext(ctx, q, string(id)))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, domain.ErrNotFound
    }
    return rec, err
}

// ApplyReview only touches the review columns. Postgres counts matched rows, so 0 means missing or owned by someone else.
func (r *AnalysisRepository) ApplyReview(ctx context.Context, id domain.RecordID, expectedReviewer string, rv domain.Review) error {
    if _, err := uuid.Parse(string(id)); err != nil {
        return domain.ErrNotFound
    }
    const q = `
UPDATE analysis_records
SET reviewed_by = $1, review_notes = $2, treatment_plan = $3, reviewed_at = $4
WHERE id = $5 AND reviewed_by = $6;`
    res, err := r.db.ExecContext(ctx, q,
        rv.ReviewedBy, rv.ReviewNotes, rv.TreatmentPlan, rv.ReviewedAt,
        string(id), expectedReviewer,
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
    var exists bool
    if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM analysis_records WHERE id=$1);`, string(id)).Scan(&exists); err != nil {
        return err
    }
    if !exists {
        return domain.ErrNotFound
    }
    return domain.ErrReviewConflict
}

func (r *AnalysisRepository) FindBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
    return r.list(ctx, `subject_id=$1`, limit, subjectID)
}

func (r *AnalysisRepository) FindByPerformer(ctx context.Context, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
    return r.list(ctx, `performed_by=$1`, limit, performedBy)
}

func (r *AnalysisRepository) FindBySubjectAndPerformer(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
    return r.list(ctx, `subject_id=$1 AND performed_by=$2`, limit, subjectID, performedBy)
}

func (r *AnalysisRepository) FindByReviewer(ctx context.Context, reviewerID string, limit int) ([]*domain.AnalysisRecord, error) {
    return r.list(ctx, `reviewed_by=$1`, limit, reviewerID)
}

// list expects where to use $1..$n for args; the limit takes the next placeholder
func (r *AnalysisRepository) list(ctx context.Context, where string, limit int, args ...any) ([]*domain.AnalysisRecord, error) {
    if limit <= 0 { limit = 20 }
    q := `SELECT ` + analysisColumns + ` FROM analysis_records WHERE ` + where +
        ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) + `;`
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

func (r *AnalysisRepository) Summary(ctx context.Context, since time.Time) (domain.Summary, error) {
    const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE classification = 'abnormal'),
       COUNT(*) FILTER (WHERE reviewed_by <> '')
FROM analysis_records
WHERE created_at >= $1;`
    var s domain.Summary
    if err := r.db.QueryRowContext(ctx, q, since).Scan(&s.Total, &s.Abnormal, &s.Reviewed); err != nil {
        return domain.Summary{}, err
    }
    s.Pending = s.Total - s.Reviewed
    return s, nil
}

type rowScanner interface{ Scan(dest ...any) error }

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
