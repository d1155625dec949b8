package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"bizdir/internal/models"
)

// MaxReasonLength bounds a rejection reason in characters.
const MaxReasonLength = 2000

// RejectionReason trims raw and rejects blank or oversized reasons.
func RejectionReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	if reason == "" {
		return "", models.NewFieldValidationError("reason", "a rejection reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return "", models.NewFieldValidationError("reason", fmt.Sprintf("reason must be at most %d characters", MaxReasonLength))
	}
	return reason, nil
}
