package validation

import (
	"errors"
	"strings"
)

// ValidateName validates the display name shown on the dashboard.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if len(trimmed) < 3 {
		return errors.New("name must be at least 3 characters")
	}

	if len(trimmed) > 100 {
		return errors.New("name is too long (max 100 characters)")
	}

	return nil
}
