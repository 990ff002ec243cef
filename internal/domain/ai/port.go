package ai

import "context"

// Prompt input for a clinician draft.
type DraftInput struct {
	Classification string
	Confidence     float64
	Threshold      float64
	RiskLevel      string
	ReviewNotes    string
}

type Client interface {
	Draft(ctx context.Context, in DraftInput) (string, error)
}
