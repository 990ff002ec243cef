package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/cerviscan/internal/domain/ai"
)

// GetSystemPrompt keeps the model to a short, non-diagnostic draft.
func GetSystemPrompt() string {
	return `You assist a gynecologist reviewing an automated cervical screening result.
Write a short draft (at most 5 sentences, plain text, no markdown) the clinician can edit before sending to the patient.

Rules:
- Do not change or contradict the model classification; state it as an automated screening result.
- Never present the text as a diagnosis. Recommend clinical follow-up appropriate to the risk level.
- If clinician notes are provided, stay consistent with them.
- Use simple words a patient can understand.`
}

// GetUserPrompt renders the record facts the draft is based on.
func GetUserPrompt(in ai.DraftInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Screening classification: %s\n", in.Classification)
	fmt.Fprintf(&b, "Model confidence: %.1f%%\n", in.Confidence*100)
	if in.Threshold > 0 {
		fmt.Fprintf(&b, "Decision threshold: %.2f\n", in.Threshold)
	}
	fmt.Fprintf(&b, "Risk level: %s\n", in.RiskLevel)
	if notes := strings.TrimSpace(in.ReviewNotes); notes != "" {
		fmt.Fprintf(&b, "Clinician notes: %s\n", notes)
	}
	return b.String()
}
