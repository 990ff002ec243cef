package assist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cerviscan/internal/domain/ai"
	"github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type stubClient struct {
	got  ai.DraftInput
	text string
	err  error
}

func (s *stubClient) Draft(_ context.Context, in ai.DraftInput) (string, error) {
	s.got = in
	return s.text, s.err
}

func TestDraft(t *testing.T) {
	c := &stubClient{text: "  Findings suggest follow-up.\n"}
	svc := NewService(c)

	d, err := svc.Draft(context.Background(), &screening.AnalysisRecord{
		ID: "rec-1", Classification: screening.ClassAbnormal, Confidence: 0.81, RiskLevel: screening.RiskHigh,
	})

	require.NoError(t, err)
	assert.Equal(t, "Findings suggest follow-up.", d.Text)
	assert.Equal(t, screening.RecordID("rec-1"), d.RecordID)
	assert.Equal(t, "abnormal", c.got.Classification)
	assert.Equal(t, "high", c.got.RiskLevel)
}

func TestDraft_PropagatesQuota(t *testing.T) {
	svc := NewService(&stubClient{err: ai.ErrQuotaExceeded})

	_, err := svc.Draft(context.Background(), &screening.AnalysisRecord{ID: "rec-1"})

	assert.True(t, errors.Is(err, ai.ErrQuotaExceeded))
}
