package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/cerviscan/internal/domain/ai"
)

func TestGetUserPrompt(t *testing.T) {
	p := GetUserPrompt(ai.DraftInput{Classification: "abnormal", Confidence: 0.812, Threshold: 0.55, RiskLevel: "high"})

	assert.Contains(t, p, "Screening classification: abnormal")
	assert.Contains(t, p, "Model confidence: 81.2%")
	assert.Contains(t, p, "Decision threshold: 0.55")
	assert.NotContains(t, p, "Clinician notes")

	p = GetUserPrompt(ai.DraftInput{Classification: "normal", RiskLevel: "low", ReviewNotes: " benign "})
	assert.NotContains(t, p, "Decision threshold")
	assert.Contains(t, p, "Clinician notes: benign")
}
