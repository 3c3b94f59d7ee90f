// Package store provides uniform persistence for user records over three
// interchangeable substrates: MongoDB, a relational database (Postgres or
// SQLite) and a single local JSON file. Business logic never talks to a
// substrate directly; it goes through the Store contract.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onpipiece/onpi-platform/internal/model"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrConflict    = errors.New("account already exists")
	ErrUnavailable = errors.New("store unavailable")
	ErrMalformed   = errors.New("persisted record is malformed")
)

// Store is the capability set every backend implements with identical
// read/write semantics.
type Store interface {
	// ByAccountID returns the record for the given account, or ErrNotFound.
	ByAccountID(ctx context.Context, accountID string) (*model.User, error)
	// BySessionToken returns the record holding the bearer token, or ErrNotFound.
	BySessionToken(ctx context.Context, token string) (*model.User, error)
	// ByResetToken returns the record holding a pending, unexpired reset
	// token. An expired token yields ErrNotFound (lazy expiry).
	ByResetToken(ctx context.Context, token string) (*model.User, error)
	// ByEmail matches case-insensitively, or ErrNotFound.
	ByEmail(ctx context.Context, email string) (*model.User, error)
	// Insert stores a new record. ErrConflict if the account_id exists.
	Insert(ctx context.Context, user *model.User) error
	// UpdateFields merges the given fields into an existing record.
	// ErrNotFound if no such account. Identity fields are never touched.
	UpdateFields(ctx context.Context, accountID string, fields Fields) error
	// All returns an unordered snapshot of every record.
	All(ctx context.Context) ([]model.User, error)
	Close(ctx context.Context) error
	// Kind names the backend for logs: "mongo", "sql" or "file".
	Kind() string
}

// Fields is a partial update: field name (as persisted, see model.User) to
// new value.
type Fields map[string]any

// updatable is the column whitelist for UpdateFields. Identity fields (id,
// account_id, session_token) and created_at are excluded; patches carrying
// them are silently stripped, mirroring how inbound update requests are
// sanitized.
var updatable = map[string]bool{
	"password_hash":      true,
	"display_name":       true,
	"email":              true,
	"messaging_handle":   true,
	"phone":              true,
	"purchased_packages": true,
	"active_package":     true,
	"reset_token":        true,
	"reset_expires":      true,
	"balance":            true,
	"withdrawals":        true,
	"wallet_address":     true,
	"stake":              true,
}

// Normalize strips non-updatable keys and coerces each value to its
// canonical in-memory type, so every backend receives the same shapes
// regardless of whether the patch came from typed code or a decoded JSON
// body. Substrate-native conversion (stringified arrays, RFC3339 text)
// happens inside each backend on the way out.
func Normalize(fields Fields) (Fields, error) {
	out := make(Fields, len(fields))
	for key, value := range fields {
		if !updatable[key] {
			continue
		}

		var err error
		switch key {
		case "purchased_packages":
			out[key], err = remarshal[model.PackageList](value)
		case "reset_expires":
			out[key], err = toTimePtr(value)
		case "balance":
			out[key], err = remarshal[float64](value)
		case "withdrawals":
			out[key], err = remarshal[[]model.Withdrawal](value)
		case "stake":
			out[key], err = toStake(value)
		default:
			out[key], err = remarshal[string](value)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return out, nil
}

// Apply merges normalized fields into a record in place. Backends without
// native partial updates (the file store) and tests use it directly.
func Apply(u *model.User, fields Fields) {
	for key, value := range fields {
		switch key {
		case "password_hash":
			u.PasswordHash = value.(string)
		case "display_name":
			u.DisplayName = value.(string)
		case "email":
			u.Email = value.(string)
		case "messaging_handle":
			u.MessagingHandle = value.(string)
		case "phone":
			u.Phone = value.(string)
		case "purchased_packages":
			u.PurchasedPackages = value.(model.PackageList)
		case "active_package":
			u.ActivePackage = value.(string)
		case "reset_token":
			u.ResetToken = value.(string)
		case "reset_expires":
			u.ResetExpires, _ = value.(*time.Time)
		case "balance":
			u.Balance = value.(float64)
		case "withdrawals":
			u.Withdrawals = value.([]model.Withdrawal)
		case "wallet_address":
			u.WalletAddress = value.(string)
		case "stake":
			u.Stake, _ = value.(map[string]any)
		}
	}
}

// remarshal coerces an arbitrary decoded value into T through its JSON
// representation. model.PackageList's unmarshaller makes this accept both
// the array and the stringified-array form of purchased_packages.
func remarshal[T any](value any) (T, error) {
	var out T
	if typed, ok := value.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func toTimePtr(value any) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *time.Time:
		return v, nil
	case time.Time:
		return &v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func toStake(value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}
	return remarshal[map[string]any](value)
}

// unavailable wraps a substrate error so callers can errors.Is it without
// seeing driver-specific text at the API boundary.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func malformed(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
}
