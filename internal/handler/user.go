package handler

import (
	"errors"
	"net/http"

	"github.com/onpipiece/onpi-platform/internal/model"
	"github.com/onpipiece/onpi-platform/internal/service"
)

type userHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *userHandler {
	return &userHandler{userService: userService}
}

func (h *userHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"msg": "api running"})
}

func (h *userHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Profile(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondStoreErr(w, "profile", err)
		return
	}

	respondOK(w, map[string]any{"user": user.Profile()})
}

func (h *userHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		respondStoreErr(w, "list-users", err)
		return
	}

	listed := make([]model.ListedUser, 0, len(users))
	for i := range users {
		listed = append(listed, users[i].Listed())
	}
	respondOK(w, map[string]any{"users": listed})
}

func (h *userHandler) ByAccountID(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")

	user, err := h.userService.ByAccountID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondErr(w, http.StatusNotFound, "not_found")
			return
		}
		respondStoreErr(w, "get-user", err)
		return
	}

	respondOK(w, map[string]any{"user": user.Detail()})
}

type updateUserRequest struct {
	Updates map[string]any `json:"updates"`
}

func (h *userHandler) Update(w http.ResponseWriter, r *http.Request) {
	req := updateUserRequest{}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userService.Update(r.Context(), r.Header.Get("Authorization"), req.Updates)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondStoreErr(w, "update-user", err)
		return
	}

	respondOK(w, map[string]any{"user": user.Detail()})
}
