package screening

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// DefaultMaxImageBytes is 10 MiB.
const DefaultMaxImageBytes = 10 << 20

// Limits for accepted images
type Limits struct {
	MaxImageBytes int64
	AllowedTypes  []string // "image/*" or exact "image/png"
}

func (l Limits) withDefaults() Limits {
	if l.MaxImageBytes <= 0 {
		l.MaxImageBytes = DefaultMaxImageBytes
	}
	if len(l.AllowedTypes) == 0 {
		l.AllowedTypes = []string{"image/*"}
	}
	return l
}

func (l Limits) validate(cmd SubmitCommand) (string, error) {
	if strings.TrimSpace(cmd.SubjectID) == "" {
		return "", errors.New("subject id is required")
	}
	if strings.TrimSpace(cmd.PerformedBy) == "" {
		return "", errors.New("performedBy is required")
	}
	if len(cmd.Image) == 0 {
		return "", errors.New("image is empty")
	}
	if int64(len(cmd.Image)) > l.MaxImageBytes {
		return "", fmt.Errorf("image is %d bytes, limit is %d", len(cmd.Image), l.MaxImageBytes)
	}

	// declared type wins; sniff only when the client sent nothing
	ct := cmd.ContentType
	if ct == "" {
		ct = http.DetectContentType(cmd.Image)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", fmt.Errorf("bad content type %q", ct)
	}
	if !typeAllowed(mediaType, l.AllowedTypes) {
		return "", fmt.Errorf("content type %s not allowed", mediaType)
	}
	return mediaType, nil
}

func typeAllowed(mediaType string, allowed []string) bool {
	mediaType = strings.ToLower(mediaType)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
			continue
		}
		if a == mediaType {
			return true
		}
	}
	return false
}
