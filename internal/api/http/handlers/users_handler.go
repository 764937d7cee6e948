package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campusnet/academic-platform/internal/api/dto"
	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/httpgate"
	"github.com/campusnet/academic-platform/internal/repository"
	"github.com/campusnet/academic-platform/internal/service"
	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

// UsersHandler exposes the user directory.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := httpgate.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Profile(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewUserResponse(user))
}

// List handles GET /api/users?role=&limit=&offset=.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	users, err := h.users.List(r.Context(), repository.UserFilter{
		Role:   auth.Role(q.Get("role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserResponse(&users[i]))
	}
	writeData(w, http.StatusOK, out)
}

// AssignRole handles PUT /api/admin/users/{id}/role.
func (h *UsersHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	caller, err := httpgate.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req dto.AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeError(w, apperrors.NewValidationError("role required", nil))
		return
	}

	user, err := h.users.AssignRole(r.Context(), caller, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewUserResponse(user))
}

// Delete handles DELETE /api/admin/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := httpgate.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
