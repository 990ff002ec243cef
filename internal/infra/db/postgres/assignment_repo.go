package postgres

import (
    "context"
    "database/sql"
    "time"

    "github.com/bryanwahyu/cerviscan/internal/domain/assignment"
)

type AssignmentRepository struct { db *sql.DB }

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository { return &AssignmentRepository{db: db} }

func (r *AssignmentRepository) Assign(ctx context.Context, a *assignment.Assignment) error {
    const q = `
INSERT INTO assignments (doctor_id, patient_id, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (doctor_id, patient_id) DO NOTHING;`
    created := a.CreatedAt
    if created.IsZero() { created = time.Now().UTC() }
    _, err := r.db.ExecContext(ctx, q, a.DoctorID, a.PatientID, created)
    return err
}

func (r *AssignmentRepository) IsAssigned(ctx context.Context, doctorID, patientID string) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM assignments WHERE doctor_id = $1 AND patient_id = $2);`
    var ok bool
    if err := r.db.QueryRowContext(ctx, q, doctorID, patientID).Scan(&ok); err != nil {
        return false, err
    }
    return ok, nil
}

func (r *AssignmentRepository) ListPatients(ctx context.Context, doctorID string) ([]string, error) {
    const q = `SELECT patient_id FROM assignments WHERE doctor_id = $1 ORDER BY created_at DESC;`
    rows, err := r.db.QueryContext(ctx, q, doctorID)
    if err != nil { return nil, err }
    defer rows.Close()

    var out []string
    for rows.Next() {
        var p string
        if err := rows.Scan(&p); err != nil { return nil, err }
        out = append(out, p)
    }
    return out, rows.Err()
}
