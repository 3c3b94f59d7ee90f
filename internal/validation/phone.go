package validation

import (
	"errors"
	"strings"
)

// ValidatePhone checks the contact phone number. Length only; the service
// never dials out, so formats stay permissive.
func ValidatePhone(phone string) error {
	trimmed := strings.TrimSpace(phone)

	if len(trimmed) < 7 {
		return errors.New("phone number must be at least 7 characters")
	}

	if len(trimmed) > 32 {
		return errors.New("phone number is too long (max 32 characters)")
	}

	return nil
}
