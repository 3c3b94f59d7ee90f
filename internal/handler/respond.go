package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onpipiece/onpi-platform/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func respondErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "err": code})
}

// respondStoreErr logs the substrate failure with context and answers with a
// generic code plus a best-effort detail string; driver error text never
// reaches the client.
func respondStoreErr(w http.ResponseWriter, op string, err error) {
	slog.Error("store operation failed", "op", op, "error", err)

	code := "internal_error"
	detail := "unexpected failure"
	switch {
	case errors.Is(err, store.ErrUnavailable):
		code = "store_unavailable"
		detail = "backend unreachable"
	case errors.Is(err, store.ErrMalformed):
		code = "store_error"
		detail = "persisted data unreadable"
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "err": code, "detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}
