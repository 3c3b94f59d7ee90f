// Package password is the credential hasher: one-way bcrypt digests and
// verification for stored account passwords.
package password

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt cost factor. It matches the cost the existing
// user base was hashed with; changing it only affects new digests.
const Cost = 10

var ErrEmptyPassword = errors.New("password is empty")

// Hash returns a salted bcrypt digest of the plaintext. It never returns the
// plaintext, even on failure.
func Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether the plaintext matches the stored digest.
func Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// HashIfNeeded hashes the value unless it already is a bcrypt digest, in
// which case it is stored as-is. This keeps bulk imports idempotent: records
// that went through an earlier import carry digests, fresh ones carry
// plaintext.
//
// A prefix match alone would accept any string starting with "$2", so the
// cost field is checked too. A value that merely looks like a digest but is
// not a valid one for this scheme will simply never verify.
func HashIfNeeded(value string) (string, error) {
	if IsDigest(value) {
		return value, nil
	}
	return Hash(value)
}

// IsDigest reports whether the value is structurally a bcrypt digest of this
// scheme: a known version prefix and a parseable cost field.
func IsDigest(value string) bool {
	if !strings.HasPrefix(value, "$2a$") && !strings.HasPrefix(value, "$2b$") && !strings.HasPrefix(value, "$2y$") {
		return false
	}
	parts := strings.SplitN(value, "$", 5)
	if len(parts) != 5 {
		return false
	}
	cost, err := strconv.Atoi(parts[2])
	if err != nil {
		return false
	}
	return cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost
}
