package validation

import (
	"errors"
	"strings"
)

// ValidateEmail performs the structural check used at registration. The
// service deliberately accepts anything with an @ and a sane length; real
// deliverability is proven by the reset-flow email, not by parsing.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}

	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}

	if !strings.Contains(email, "@") {
		return errors.New("invalid email address format")
	}

	return nil
}
