package assist

import (
	"context"
	"strings"

	"github.com/bryanwahyu/cerviscan/internal/domain/ai"
	"github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

// Service drafts plain-language text for the reviewing clinician.
// It only reads the record; nothing it returns is persisted.
type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Draft is the response for a draft request.
type Draft struct {
	RecordID screening.RecordID `json:"recordId"`
	Text     string             `json:"text"`
}

func (s *Service) Draft(ctx context.Context, rec *screening.AnalysisRecord) (Draft, error) {
	text, err := s.client.Draft(ctx, ai.DraftInput{
		Classification: string(rec.Classification),
		Confidence:     rec.Confidence,
		Threshold:      rec.Threshold,
		RiskLevel:      string(rec.RiskLevel),
		ReviewNotes:    rec.ReviewNotes,
	})
	if err != nil {
		return Draft{}, err
	}
	return Draft{RecordID: rec.ID, Text: strings.TrimSpace(text)}, nil
}
