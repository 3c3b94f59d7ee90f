package handler

import (
	"errors"
	"net/http"

	"github.com/onpipiece/onpi-platform/internal/service"
)

type resetHandler struct {
	resetService *service.ResetService
}

func NewResetHandler(resetService *service.ResetService) *resetHandler {
	return &resetHandler{resetService: resetService}
}

type forgotPasswordRequest struct {
	Identifier string `json:"identifier"`
}

func (h *resetHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	req := forgotPasswordRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	debugToken, err := h.resetService.RequestReset(r.Context(), req.Identifier)
	if err != nil {
		if errors.Is(err, service.ErrMissingIdentifier) {
			respondErr(w, http.StatusBadRequest, "missing_identifier")
			return
		}
		respondStoreErr(w, "forgot-password", err)
		return
	}

	// Identical response whether or not an account matched.
	fields := map[string]any{"message": "If an account exists, instructions will be sent."}
	if debugToken != "" {
		fields["debug"] = true
		fields["token"] = debugToken
		fields["message"] = "Token returned for debugging (not sent by email)."
	}
	respondOK(w, fields)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *resetHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req := resetPasswordRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.resetService.ConsumeReset(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			respondErr(w, http.StatusBadRequest, "missing_fields")
		case errors.Is(err, service.ErrPasswordTooShort):
			respondErr(w, http.StatusBadRequest, "password_too_short")
		case errors.Is(err, service.ErrInvalidResetToken):
			respondErr(w, http.StatusBadRequest, "invalid_or_expired_token")
		default:
			respondStoreErr(w, "reset-password", err)
		}
		return
	}

	respondOK(w, map[string]any{"message": "Password updated"})
}
