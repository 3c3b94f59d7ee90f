package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onpipiece/onpi-platform/internal/password"
	"github.com/onpipiece/onpi-platform/internal/store"
	"github.com/onpipiece/onpi-platform/internal/validation"
)

var (
	ErrMissingIdentifier = errors.New("missing identifier")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// ResetService drives the forgot-password state machine: token issuance with
// absolute expiry, best-effort delivery, and single-use consumption. Expiry
// is lazy — a stale token is simply never matched, no sweeper runs.
type ResetService struct {
	store       store.Store
	notifier    Notifier
	tokenExpiry time.Duration
	// debugTokens echoes the issued token in the response, for development
	// and explicitly flagged deployments only.
	debugTokens bool
}

func NewResetService(st store.Store, notifier Notifier, tokenExpiry time.Duration, debugTokens bool) *ResetService {
	return &ResetService{
		store:       st,
		notifier:    notifier,
		tokenExpiry: tokenExpiry,
		debugTokens: debugTokens,
	}
}

// RequestReset issues a new reset token for the account matching the
// identifier (account id first, then case-insensitive email). A missing
// account is NOT an error: the caller gets the same success either way, so
// the endpoint cannot be used to enumerate accounts. Issuing overwrites any
// prior pending token.
//
// The returned token is non-empty only when debug mode applies; production
// callers always get "".
func (s *ResetService) RequestReset(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrMissingIdentifier
	}

	user, err := s.store.ByAccountID(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.store.ByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("looking up account: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	expires := time.Now().Add(s.tokenExpiry).UTC()

	err = s.store.UpdateFields(ctx, user.AccountID, store.Fields{
		"reset_token":   token,
		"reset_expires": &expires,
	})
	if err != nil {
		return "", fmt.Errorf("persisting reset token: %w", err)
	}

	// Token is persisted; delivery is best-effort from here on.
	if user.Email != "" {
		if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
			slog.Warn("reset delivery failed", "error", err, "account_id", user.AccountID)
		}
	}

	slog.Info("reset token issued", "account_id", user.AccountID, "expires", expires)

	if s.debugTokens {
		return token, nil
	}
	return "", nil
}

// ConsumeReset sets a new password for the record holding the token and
// clears the pending reset in the same store call, so a second consumption
// with the same token can never succeed.
func (s *ResetService) ConsumeReset(ctx context.Context, token, newPlaintext string) error {
	if token == "" || newPlaintext == "" {
		return ErrMissingFields
	}
	if err := validation.ValidatePassword(newPlaintext); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordTooShort, err)
	}

	user, err := s.store.ByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("looking up reset token: %w", err)
	}

	hash, err := password.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	err = s.store.UpdateFields(ctx, user.AccountID, store.Fields{
		"password_hash": hash,
		"reset_token":   "",
		"reset_expires": nil,
	})
	if err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	slog.Info("password reset consumed", "account_id", user.AccountID)
	return nil
}

func newResetToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
