package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onpipiece/onpi-platform/internal/model"
	"github.com/onpipiece/onpi-platform/internal/password"
	"github.com/onpipiece/onpi-platform/internal/store"
	"github.com/onpipiece/onpi-platform/internal/validation"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPhone       = errors.New("invalid phone")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid account or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrWrongPassword      = errors.New("wrong password")
)

// AuthService owns registration, login, session resolution and password
// changes. It composes the credential hasher with the record store and never
// touches a substrate directly.
type AuthService struct {
	store store.Store
}

func NewAuthService(st store.Store) *AuthService {
	return &AuthService{store: st}
}

type RegisterParams struct {
	AccountID       string
	Password        string
	Name            string
	Email           string
	MessagingHandle string
	Phone           string
}

// Register creates the record exactly once: hashed password, fresh random
// session token, no packages, active_package "0". The store's uniqueness
// check on insert is the authoritative conflict guard; the lookup before it
// only serves the common case a friendlier error.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if params.AccountID == "" || params.Password == "" || params.Name == "" || params.Email == "" || params.Phone == "" {
		return nil, ErrMissingFields
	}
	if err := validation.ValidateName(params.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := validation.ValidateEmail(params.Email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	if err := validation.ValidatePhone(params.Phone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}

	_, err := s.store.ByAccountID(ctx, params.AccountID)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking account: %w", err)
	}

	hash, err := password.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		ID:                uuid.New().String(),
		AccountID:         params.AccountID,
		PasswordHash:      hash,
		DisplayName:       params.Name,
		Email:             params.Email,
		MessagingHandle:   params.MessagingHandle,
		Phone:             params.Phone,
		CreatedAt:         time.Now().UTC(),
		SessionToken:      uuid.New().String(),
		PurchasedPackages: model.PackageList{},
		ActivePackage:     model.NoActivePackage,
	}

	if err := s.store.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("inserting account: %w", err)
	}

	slog.Info("account registered", "account_id", user.AccountID)
	return user, nil
}

// Login verifies credentials and returns the record. The session token is
// the one issued at registration; it is never rotated.
func (s *AuthService) Login(ctx context.Context, accountID, plaintext string) (*model.User, error) {
	user, err := s.store.ByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if !password.Verify(plaintext, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ResolveSession maps a bearer value to the record it authenticates. The
// value is accepted with or without the "Bearer " prefix.
func (s *AuthService) ResolveSession(ctx context.Context, bearer string) (*model.User, error) {
	token := strings.TrimPrefix(bearer, "Bearer ")
	if token == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.store.BySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return user, nil
}

// ChangePassword re-hashes and stores after verifying the old password
// against the stored digest.
func (s *AuthService) ChangePassword(ctx context.Context, bearer, oldPlaintext, newPlaintext string) error {
	user, err := s.ResolveSession(ctx, bearer)
	if err != nil {
		return err
	}

	if oldPlaintext == "" || newPlaintext == "" {
		return ErrMissingFields
	}
	if !user.HasPassword() || !password.Verify(oldPlaintext, user.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := password.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	err = s.store.UpdateFields(ctx, user.AccountID, store.Fields{"password_hash": hash})
	if err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	slog.Info("password changed", "account_id", user.AccountID)
	return nil
}
