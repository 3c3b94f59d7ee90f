package validation

import "errors"

// ValidatePassword validates new passwords on the reset and change flows.
func ValidatePassword(password string) error {
	// Minimum length: 6 characters
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	// Maximum length: 72 bytes (bcrypt limitation)
	// bcrypt silently truncates passwords longer than 72 bytes, which is a security risk
	if len(password) > 72 {
		return errors.New("password must not exceed 72 characters")
	}

	return nil
}
