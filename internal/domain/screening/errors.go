package screening

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("invalid screening input")
	ErrUploadFailed          = errors.New("image upload failed")
	ErrClassificationFailed  = errors.New("classification failed")
	ErrClassificationTimeout = errors.New("classification timed out")
	ErrPersistFailed         = errors.New("saving analysis record failed")
	ErrNotFound              = errors.New("analysis record not found")
	ErrUnauthorized          = errors.New("reviewer not permitted for this subject")
	ErrReviewConflict        = errors.New("record already reviewed by another clinician")
	ErrCanceled              = errors.New("screening canceled")
)

// UpstreamError carries the classifier's non-2xx status and body.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// StageError reports which stage failed and why. Kind is one of the sentinel errors above.
type StageError struct {
	Stage          Stage
	Kind           error
	UpstreamStatus int
	UpstreamBody   string
	Err            error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError wraps err, lifting upstream diagnostics when present.
func NewStageError(stage Stage, kind, err error) *StageError {
	se := &StageError{Stage: stage, Kind: kind, Err: err}
	var up *UpstreamError
	if errors.As(err, &up) {
		se.UpstreamStatus = up.StatusCode
		se.UpstreamBody = up.Body
	}
	return se
}
