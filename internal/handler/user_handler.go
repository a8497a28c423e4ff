package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waterdash/internal/middleware"
	"waterdash/internal/model"
	"waterdash/internal/service"
	"waterdash/pkg/apierror"
)

// UserHandler exposes the admin-panel user management operations. Every
// route behind it already passed RequireAuth; scope checks happen in the
// service layer per target user.
type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

// List returns the accounts the caller may administer.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	users, err := h.service.ManagedUsers(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	public := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	writeSuccess(w, http.StatusOK, public, nil)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	role, valid := model.ParseRole(payload.Role)
	if !valid {
		writeError(w, apierror.New("BAD_REQUEST", "invalid role", payload.Role, http.StatusBadRequest))
		return
	}

	user, err := h.service.CreateUser(r.Context(), actor,
		payload.Username, payload.Password, role,
		payload.AssignedCountry, payload.FullName, payload.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user.Public(), nil)
}

// SetPassword changes the password of the addressed user. Self-changes
// must carry the current password; manager resets must not.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	targetID := chi.URLParam(r, "userID")
	if err := h.service.SetPassword(r.Context(), actor, targetID, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"password_changed": true}, nil)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	targetID := chi.URLParam(r, "userID")
	if err := h.service.Deactivate(r.Context(), actor, targetID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deactivated": true}, nil)
}
