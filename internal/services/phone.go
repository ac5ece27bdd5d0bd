package services

import (
	"fmt"
	"strings"

	"santa-tracker-backend/internal/models"
)

// NormalizePhone formats a US phone number as +1XXXXXXXXXX. Every non-digit is
// dropped, as is a leading country code 1.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "1")
	if len(digits) != 10 {
		return "", fmt.Errorf("phone number %q must have 10 digits: %w", raw, models.ErrInvalid)
	}
	return "+1" + digits, nil
}

// normalizeOptionalPhone normalizes a phone number that may be absent
func normalizeOptionalPhone(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	phone, err := NormalizePhone(*raw)
	if err != nil {
		return nil, err
	}
	return &phone, nil
}
