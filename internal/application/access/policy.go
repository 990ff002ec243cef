package access

import (
	"context"

	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
	"github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

// Policy decides who may read analysis records.
//   - admin: everything
//   - patient: records about themselves
//   - health worker: records they performed
//   - doctor: records of assigned patients
type Policy struct {
	Assignments assignment.Checker
}

// CanReadSubject is the subject-level check used by list endpoints.
func (p Policy) CanReadSubject(ctx context.Context, who identity.Principal, subjectID string) error {
	switch who.Role {
	case identity.RoleAdmin:
		return nil
	case identity.RolePatient:
		if who.ID == subjectID {
			return nil
		}
	case identity.RoleDoctor:
		ok, err := p.Assignments.IsAssigned(ctx, who.ID, subjectID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return identity.ErrForbidden
}

// CanReadRecord checks a single record.
func (p Policy) CanReadRecord(ctx context.Context, who identity.Principal, rec *screening.AnalysisRecord) error {
	if who.Role == identity.RoleHealthWorker {
		if rec.PerformedBy == who.ID {
			return nil
		}
		return identity.ErrForbidden
	}
	return p.CanReadSubject(ctx, who, rec.SubjectID)
}
