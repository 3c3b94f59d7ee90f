package handler

import (
	"errors"
	"net/http"

	"github.com/onpipiece/onpi-platform/internal/service"
)

type authHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *authHandler {
	return &authHandler{authService: authService}
}

type registerRequest struct {
	Account         string `json:"account"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	MessagingHandle string `json:"messaging_handle"`
	Phone           string `json:"phone"`
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	req := registerRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), service.RegisterParams{
		AccountID:       req.Account,
		Password:        req.Password,
		Name:            req.Name,
		Email:           req.Email,
		MessagingHandle: req.MessagingHandle,
		Phone:           req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			respondErr(w, http.StatusBadRequest, "missing_fields")
		case errors.Is(err, service.ErrInvalidName):
			respondErr(w, http.StatusBadRequest, "invalid_name")
		case errors.Is(err, service.ErrInvalidEmail):
			respondErr(w, http.StatusBadRequest, "invalid_email")
		case errors.Is(err, service.ErrInvalidPhone):
			respondErr(w, http.StatusBadRequest, "invalid_phone")
		case errors.Is(err, service.ErrAccountExists):
			respondErr(w, http.StatusConflict, "user_exists")
		default:
			respondStoreErr(w, "register", err)
		}
		return
	}

	respondOK(w, map[string]any{
		"token": user.SessionToken,
		"user":  user.Public(),
	})
}

type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	req := loginRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.authService.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondErr(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		respondStoreErr(w, "login", err)
		return
	}

	respondOK(w, map[string]any{
		"token": user.SessionToken,
		"user":  user.Public(),
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *authHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	req := changePasswordRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.authService.ChangePassword(r.Context(), r.Header.Get("Authorization"), req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			respondErr(w, http.StatusUnauthorized, "unauthorized")
		case errors.Is(err, service.ErrMissingFields):
			respondErr(w, http.StatusBadRequest, "missing_fields")
		case errors.Is(err, service.ErrWrongPassword):
			respondErr(w, http.StatusForbidden, "wrong_password")
		default:
			respondStoreErr(w, "change-password", err)
		}
		return
	}

	respondOK(w, nil)
}
