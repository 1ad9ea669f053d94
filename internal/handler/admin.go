package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/coursehub/internal/model"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string         `json:"username" validate:"required,min=3,max=64,alphanum"`
	DisplayName string         `json:"display_name" validate:"max=128"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	Role        model.UserRole `json:"role" validate:"required,oneof=learner teacher admin"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.createUser(req.Username, req.DisplayName, req.Password, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id == model.UserFromContext(r.Context()).ID {
		writeError(w, r, fmt.Errorf("cannot deactivate yourself: %w", model.ErrInvalid))
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
