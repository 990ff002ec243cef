package assignment

import "context"

// Checker answers the "is this reviewer permitted" question.
type Checker interface {
	IsAssigned(ctx context.Context, doctorID, patientID string) (bool, error)
}

// Repository port for doctor-patient assignments
type Repository interface {
	Checker
	// Assign is idempotent.
	Assign(ctx context.Context, a *Assignment) error
	ListPatients(ctx context.Context, doctorID string) ([]string, error)
}
