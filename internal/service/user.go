package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/onpipiece/onpi-platform/internal/model"
	"github.com/onpipiece/onpi-platform/internal/password"
	"github.com/onpipiece/onpi-platform/internal/store"
)

var ErrUserNotFound = errors.New("user not found")

// UserService serves the profile, admin-listing and update flows over the
// record store.
type UserService struct {
	store store.Store
	auth  *AuthService
}

func NewUserService(st store.Store, auth *AuthService) *UserService {
	return &UserService{store: st, auth: auth}
}

// Profile resolves the bearer token to the caller's own record.
func (s *UserService) Profile(ctx context.Context, bearer string) (*model.User, error) {
	return s.auth.ResolveSession(ctx, bearer)
}

// ByAccountID is the public-ish single-record lookup.
func (s *UserService) ByAccountID(ctx context.Context, accountID string) (*model.User, error) {
	user, err := s.store.ByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return user, nil
}

// List returns an unordered snapshot of every record for the admin overview.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Update merges the given fields into the caller's own record and returns
// the record as persisted. Identity fields (id, account_id, session_token)
// in the patch are dropped by the store layer, never applied.
func (s *UserService) Update(ctx context.Context, bearer string, updates map[string]any) (*model.User, error) {
	user, err := s.auth.ResolveSession(ctx, bearer)
	if err != nil {
		return nil, err
	}

	// A patched credential may arrive as plaintext or as a digest exported
	// from another record set. Either way only a digest is stored.
	if raw, ok := updates["password_hash"].(string); ok && raw != "" {
		digest, err := password.HashIfNeeded(raw)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		updates["password_hash"] = digest
	}

	err = s.store.UpdateFields(ctx, user.AccountID, store.Fields(updates))
	if err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}

	updated, err := s.store.ByAccountID(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("reloading account: %w", err)
	}
	return updated, nil
}
