package screening

import (
	"fmt"
	"math"
	"strings"
)

// RawPrediction is the classifier response body as received.
type RawPrediction struct {
	Prediction string   `json:"prediction"`
	Score      *float64 `json:"score"`
	Threshold  *float64 `json:"threshold"`
	Class      string   `json:"class,omitempty"`
}

// Result is a validated, normalized classification.
type Result struct {
	Classification Classification
	Confidence     float64
	Threshold      float64
	RiskLevel      RiskLevel
}

// NormalizeLabel maps a classifier label to the enum.
// Only a case-insensitive "abnormal" is abnormal; every other label, including empty, is normal.
func NormalizeLabel(label string) Classification {
	if strings.EqualFold(strings.TrimSpace(label), string(ClassAbnormal)) {
		return ClassAbnormal
	}
	return ClassNormal
}

// RiskFor derives the risk level: low iff normal.
func RiskFor(c Classification) RiskLevel {
	if c == ClassNormal {
		return RiskLow
	}
	return RiskHigh
}

// NewResult validates the raw prediction. A missing or out of range score is a classification failure.
func NewResult(raw RawPrediction) (Result, error) {
	if raw.Score == nil {
		return Result{}, fmt.Errorf("%w: score missing from classifier response", ErrClassificationFailed)
	}
	score := *raw.Score
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Result{}, fmt.Errorf("%w: score %v outside [0,1]", ErrClassificationFailed, score)
	}
	var threshold float64
	if raw.Threshold != nil {
		threshold = *raw.Threshold
	}
	class := NormalizeLabel(raw.Prediction)
	return Result{
		Classification: class,
		Confidence:     score,
		Threshold:      threshold,
		RiskLevel:      RiskFor(class),
	}, nil
}

// SummaryText is the short line stored alongside the record.
func (r Result) SummaryText() string {
	return fmt.Sprintf("AI Analysis Result: %s (confidence %.1f%%)", r.Classification, r.Confidence*100)
}
