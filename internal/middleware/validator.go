package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	subjectIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)
	recordIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9-]{1,64}$`)
)

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateSubjectID validates patient/subject id format
func ValidateSubjectID(id string) error {
	if id == "" {
		return fmt.Errorf("subject ID cannot be empty")
	}
	if !subjectIDPattern.MatchString(id) {
		return fmt.Errorf("invalid subject ID format (alphanumeric, dash, underscore, dot, colon only, max 128 chars)")
	}
	return nil
}

// ValidateRecordID validates analysis record id format (uuid or object id)
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if !recordIDPattern.MatchString(id) {
		return fmt.Errorf("invalid record ID format")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
