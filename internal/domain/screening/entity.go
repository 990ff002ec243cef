package screening

import (
	"time"
)

// RecordID identifier type
type RecordID string

// Classification enum
type Classification string

const (
	ClassNormal   Classification = "normal"
	ClassAbnormal Classification = "abnormal"
)

// RiskLevel enum
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Status enum
type Status string

const (
	StatusClassified  Status = "classified"
	StatusPlaceholder Status = "placeholder"
)

// Aggregate Root: AnalysisRecord.
// Created once by the upload-and-classify workflow; only the review fields change afterwards.
type AnalysisRecord struct {
	ID             RecordID       `json:"id"`
	SubjectID      string         `json:"subjectId"`
	ImageRef       string         `json:"imageRef"`
	Classification Classification `json:"classification,omitempty"`
	Confidence     float64        `json:"confidence"`
	Threshold      float64        `json:"threshold"`
	RiskLevel      RiskLevel      `json:"riskLevel"`
	Status         Status         `json:"status"`
	Summary        string         `json:"summary,omitempty"`
	PerformedBy    string         `json:"performedBy"`
	CreatedAt      time.Time      `json:"createdAt"`

	ReviewedBy    string     `json:"reviewedBy,omitempty"`
	ReviewNotes   string     `json:"reviewNotes,omitempty"`
	TreatmentPlan string     `json:"treatmentPlan,omitempty"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
}

// Reviewed is true once a clinician has published a review.
func (r *AnalysisRecord) Reviewed() bool {
	return r.ReviewedBy != ""
}

// Review value object, the only fields the review workflow may write.
type Review struct {
	ReviewedBy    string
	ReviewNotes   string
	TreatmentPlan string
	ReviewedAt    time.Time
}

// Summary value object for the reporting view
type Summary struct {
	Total    int64 `json:"total"`
	Abnormal int64 `json:"abnormal"`
	Reviewed int64 `json:"reviewed"`
	Pending  int64 `json:"pending"`
}

// Failure is an audit entry written when a network-touching stage fails.
type Failure struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subjectId"`
	PerformedBy string    `json:"performedBy"`
	Stage       Stage     `json:"stage"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Event is published after a record changes state.
type Event struct {
	Type      string    `json:"type"`
	RecordID  RecordID  `json:"recordId"`
	SubjectID string    `json:"subjectId"`
	ActorID   string    `json:"actorId"`
	RiskLevel RiskLevel `json:"riskLevel,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventCreated  = "screening.created"
	EventReviewed = "screening.reviewed"
)
