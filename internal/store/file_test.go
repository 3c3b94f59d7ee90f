package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onpipiece/onpi-platform/internal/model"
)

func newTestFileStore(t *testing.T) *fileStore {
	t.Helper()
	s, err := newFileStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return s
}

func testUser(accountID string) *model.User {
	return &model.User{
		ID:                "id-" + accountID,
		AccountID:         accountID,
		PasswordHash:      "$2a$10$hash",
		DisplayName:       "User " + accountID,
		Email:             accountID + "@example.com",
		Phone:             "+123456789",
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
		SessionToken:      "session-" + accountID,
		PurchasedPackages: model.PackageList{},
		ActivePackage:     model.NoActivePackage,
	}
}

func TestFileStoreInsertAndLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	user := testUser("alice")
	require.NoError(t, s.Insert(ctx, user))

	byAccount, err := s.ByAccountID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byAccount.ID)
	assert.Equal(t, user.PasswordHash, byAccount.PasswordHash)

	bySession, err := s.BySessionToken(ctx, "session-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", bySession.AccountID)

	// Email matching is case-insensitive.
	byEmail, err := s.ByEmail(ctx, "ALICE@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice", byEmail.AccountID)

	_, err = s.ByAccountID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreInsertConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	require.NoError(t, s.Insert(ctx, testUser("alice")))

	dup := testUser("alice")
	dup.ID = "different-id"
	assert.ErrorIs(t, s.Insert(ctx, dup), ErrConflict)
}

func TestFileStoreUpdateFields(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	require.NoError(t, s.Insert(ctx, testUser("alice")))

	err := s.UpdateFields(ctx, "alice", Fields{
		"display_name":       "Renamed",
		"balance":            99.5,
		"purchased_packages": []string{"starter"},
		"account_id":         "hijacked",
		"session_token":      "hijacked",
	})
	require.NoError(t, err)

	got, err := s.ByAccountID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, 99.5, got.Balance)
	assert.Equal(t, model.PackageList{"starter"}, got.PurchasedPackages)
	assert.Equal(t, "session-alice", got.SessionToken)

	// Untouched fields survive the merge.
	assert.Equal(t, "alice@example.com", got.Email)

	assert.ErrorIs(t, s.UpdateFields(ctx, "nobody", Fields{"balance": 1.0}), ErrNotFound)
}

func TestFileStoreResetTokenLazyExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	require.NoError(t, s.Insert(ctx, testUser("alice")))

	future := time.Now().Add(time.Hour)
	require.NoError(t, s.UpdateFields(ctx, "alice", Fields{
		"reset_token":   "fresh-token",
		"reset_expires": &future,
	}))

	got, err := s.ByResetToken(ctx, "fresh-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AccountID)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.UpdateFields(ctx, "alice", Fields{
		"reset_token":   "stale-token",
		"reset_expires": &past,
	}))

	// Expired tokens are indistinguishable from absent ones.
	_, err = s.ByResetToken(ctx, "stale-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := newFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, testUser("alice")))

	reopened, err := newFileStore(path)
	require.NoError(t, err)

	got, err := reopened.ByAccountID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "session-alice", got.SessionToken)
}

func TestFileStoreAll(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	require.NoError(t, s.Insert(ctx, testUser("alice")))
	require.NoError(t, s.Insert(ctx, testUser("bob")))

	users, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	users, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := newFileStore(path)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFileStoreReadsStringifiedPackages(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	// A document written by an earlier deployment that stored the package
	// list as a JSON-encoded string.
	doc := `{"users":[{"id":"id-1","account_id":"legacy","purchased_packages":"[\"starter\"]","created_at":"2024-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := newFileStore(path)
	require.NoError(t, err)

	got, err := s.ByAccountID(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, model.PackageList{"starter"}, got.PurchasedPackages)
}
