package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onpipiece/onpi-platform/internal/app"
	"github.com/onpipiece/onpi-platform/internal/config"
	"github.com/onpipiece/onpi-platform/internal/routes"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		AppName:          "ONPI",
		AppEnv:           "development",
		AppURL:           "http://localhost:3000",
		Port:             "3000",
		DataPath:         filepath.Join(t.TempDir(), "users.json"),
		ResetTokenExpiry: time.Hour,
		EmailFrom:        "noreply@example.com",
	}

	application, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { application.Close(context.Background()) })

	return routes.SetupRoutes(application)
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func registerBody(account string) map[string]any {
	return map[string]any{
		"account":          account,
		"password":         "secret123",
		"name":             "User " + account,
		"email":            account + "@example.com",
		"messaging_handle": "@" + account,
		"phone":            "+12345678",
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "api running", body["msg"])
}

func TestRegisterLoginProfile(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["account_id"])
	assert.Equal(t, "User alice", user["name"])
	assert.NotContains(t, user, "password_hash")

	// Login returns the same session token.
	code, body = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]any{
		"account":  "alice",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, token, body["token"])

	// The profile is the fresh-account shape.
	code, body = doJSON(t, h, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	profile := body["user"].(map[string]any)
	assert.Equal(t, "alice", profile["account_id"])
	assert.Equal(t, "0", profile["active_package"])
	assert.Equal(t, []any{}, profile["purchased_packages"])
	assert.NotContains(t, profile, "password_hash")
	assert.NotContains(t, profile, "session_token")
}

func TestRegisterValidationErrors(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name     string
		mutate   func(map[string]any)
		wantCode int
		wantErr  string
	}{
		{"missing password", func(b map[string]any) { b["password"] = "" }, http.StatusBadRequest, "missing_fields"},
		{"short name", func(b map[string]any) { b["name"] = "Al" }, http.StatusBadRequest, "invalid_name"},
		{"bad email", func(b map[string]any) { b["email"] = "nope" }, http.StatusBadRequest, "invalid_email"},
		{"short phone", func(b map[string]any) { b["phone"] = "12" }, http.StatusBadRequest, "invalid_phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := registerBody("alice")
			tt.mutate(body)
			code, resp := doJSON(t, h, http.MethodPost, "/api/register", "", body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, false, resp["ok"])
			assert.Equal(t, tt.wantErr, resp["err"])
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h := newTestServer(t)

	code, _ := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "user_exists", body["err"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newTestServer(t)

	code, _ := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, h, http.MethodPost, "/api/login", "", map[string]any{
		"account":  "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", body["err"])

	// Unknown accounts answer identically.
	code, body = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]any{
		"account":  "nobody",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", body["err"])
}

func TestProfileUnauthorized(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodGet, "/api/profile", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["err"])
}

func TestPasswordResetFlow(t *testing.T) {
	h := newTestServer(t)

	code, _ := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)

	// Development mode echoes the token instead of relying on delivery.
	code, body := doJSON(t, h, http.MethodPost, "/api/forgot-password", "", map[string]any{
		"identifier": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["debug"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = doJSON(t, h, http.MethodPost, "/api/reset-password", "", map[string]any{
		"token":       token,
		"newPassword": "newsecret1",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Password updated", body["message"])

	code, _ = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]any{
		"account":  "alice",
		"password": "newsecret1",
	})
	assert.Equal(t, http.StatusOK, code)

	// The token was consumed; a second attempt fails.
	code, body = doJSON(t, h, http.MethodPost, "/api/reset-password", "", map[string]any{
		"token":       token,
		"newPassword": "thirdsecret",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_or_expired_token", body["err"])
}

func TestForgotPasswordUnknownIdentifier(t *testing.T) {
	h := newTestServer(t)

	// Same success shape whether or not the account exists.
	code, body := doJSON(t, h, http.MethodPost, "/api/forgot-password", "", map[string]any{
		"identifier": "nobody@example.com",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.NotContains(t, body, "token")
}

func TestChangePassword(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)
	token := body["token"].(string)

	code, resp := doJSON(t, h, http.MethodPost, "/api/change-password", token, map[string]any{
		"oldPassword": "wrong",
		"newPassword": "newsecret1",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "wrong_password", resp["err"])

	code, _ = doJSON(t, h, http.MethodPost, "/api/change-password", token, map[string]any{
		"oldPassword": "secret123",
		"newPassword": "newsecret1",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]any{
		"account":  "alice",
		"password": "newsecret1",
	})
	assert.Equal(t, http.StatusOK, code)
}

func TestUpdateAndLookup(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)
	token := body["token"].(string)

	code, body = doJSON(t, h, http.MethodPost, "/api/user/update", token, map[string]any{
		"updates": map[string]any{
			"wallet_address": "0xabc",
			"balance":        25.5,
			"account_id":     "hijacked",
		},
	})
	require.Equal(t, http.StatusOK, code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["account_id"])
	assert.Equal(t, "0xabc", user["wallet_address"])
	assert.Equal(t, 25.5, user["balance"])

	code, body = doJSON(t, h, http.MethodGet, "/api/user/alice", "", nil)
	require.Equal(t, http.StatusOK, code)
	detail := body["user"].(map[string]any)
	assert.Equal(t, "0xabc", detail["wallet_address"])
	assert.NotContains(t, detail, "password_hash")

	code, body = doJSON(t, h, http.MethodGet, "/api/user/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["err"])
}

func TestUsersList(t *testing.T) {
	h := newTestServer(t)

	code, _ := doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("alice"))
	require.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, h, http.MethodPost, "/api/register", "", registerBody("bob"))
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, h, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, code)

	users := body["users"].([]any)
	require.Len(t, users, 2)
	first := users[0].(map[string]any)
	assert.Contains(t, first, "balance")
	assert.Contains(t, first, "withdrawals")
	assert.NotContains(t, first, "password_hash")
	assert.NotContains(t, first, "session_token")
}

func TestInvalidBody(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_body")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/register", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
