package postgres

import (
    "context"
    "database/sql"
    "strconv"
    "time"

    domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type FailureRepository struct { db *sql.DB }

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
    const q = `
INSERT INTO screening_failures (subject_id, performed_by, stage, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`
    created := f.CreatedAt
    if created.IsZero() { created = time.Now().UTC() }
    var id int64
    err := r.db.QueryRowContext(ctx, q,
        stringOrDash(f.SubjectID), stringOrDash(f.PerformedBy), stringOrDash(string(f.Stage)),
        stringOrDash(f.Message), jsonOrEmpty(f.DetailsJSON), created,
    ).Scan(&id)
    if err != nil {
        return err
    }
    f.ID = strconv.FormatInt(id, 10)
    f.CreatedAt = created
    return nil
}

func (r *FailureRepository) ListBySubject(ctx context.Context, subjectID, performedBy string, limit int) ([]*domain.Failure, error) {
    if limit <= 0 { limit = 20 }
    where, args := `subject_id = $1`, []any{subjectID}
    if performedBy != "" {
        where += ` AND performed_by = $2`
        args = append(args, performedBy)
    }
    q := `
SELECT id, subject_id, performed_by, stage, message, details_json, created_at
FROM screening_failures
WHERE ` + where + `
ORDER BY created_at DESC, id DESC
LIMIT $` + strconv.Itoa(len(args)+1) + `;`
    rows, err := r.db.QueryContext(ctx, q, append(args, limit)...)
    if err != nil { return nil, err }
    defer rows.Close()

    var out []*domain.Failure
    for rows.Next() {
        var f domain.Failure
        var id int64
        if err := rows.Scan(&id, &f.SubjectID, &f.PerformedBy, &f.Stage, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
            return nil, err
        }
        f.ID = strconv.FormatInt(id, 10)
        out = append(out, &f)
    }
    return out, rows.Err()
}
