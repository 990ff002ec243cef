package screening

// Stage of a screening submission
type Stage string

const (
	StageValidating  Stage = "validating"
	StageUploading   Stage = "uploading"
	StageClassifying Stage = "classifying"
	StageSaving      Stage = "saving"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Message is the human readable text shown while a stage runs.
func (s Stage) Message() string {
	switch s {
	case StageValidating:
		return "Checking the selected image"
	case StageUploading:
		return "Uploading image to storage"
	case StageClassifying:
		return "Analyzing image with the screening model"
	case StageSaving:
		return "Saving the screening result"
	case StageDone:
		return "Screening complete"
	case StageFailed:
		return "Screening failed"
	}
	return string(s)
}

// ProgressFunc receives every stage transition in order.
type ProgressFunc func(Stage)
