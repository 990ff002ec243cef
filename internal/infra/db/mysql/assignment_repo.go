package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
)

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Assign is idempotent thanks to the composite primary key
func (r *AssignmentRepository) Assign(ctx context.Context, a *assignment.Assignment) error {
	const q = `
INSERT INTO assignments (doctor_id, patient_id, created_at)
VALUES (?,?,?)
ON DUPLICATE KEY UPDATE doctor_id = doctor_id;`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, a.DoctorID, a.PatientID, created)
	return err
}

func (r *AssignmentRepository) IsAssigned(ctx context.Context, doctorID, patientID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM assignments WHERE doctor_id = ? AND patient_id = ?;`
	var n int
	if err := r.db.QueryRowContext(ctx, q, doctorID, patientID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AssignmentRepository) ListPatients(ctx context.Context, doctorID string) ([]string, error) {
	const q = `SELECT patient_id FROM assignments WHERE doctor_id = ? ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
