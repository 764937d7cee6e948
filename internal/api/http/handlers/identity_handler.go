package handlers

import (
	"net/http"

	"github.com/campusnet/academic-platform/internal/api/dto"
	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/httpgate"
	"github.com/campusnet/academic-platform/internal/service"
)

// IdentityHandler serves role specific ids.
type IdentityHandler struct {
	ids   httpgate.DomainIDs
	users *service.UserService
}

// NewIdentityHandler constructs handler. ids.Remote may be nil.
func NewIdentityHandler(ids httpgate.DomainIDs, users *service.UserService) *IdentityHandler {
	return &IdentityHandler{ids: ids, users: users}
}

// StudentMe handles GET /api/students/me.
func (h *IdentityHandler) StudentMe(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, auth.DomainStudent)
}

// TeacherMe handles GET /api/teachers/me.
func (h *IdentityHandler) TeacherMe(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, auth.DomainTeacher)
}

func (h *IdentityHandler) resolve(w http.ResponseWriter, r *http.Request, kind auth.DomainKind) {
	id, err := h.ids.Resolve(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dto.DomainIDResponse{Kind: string(kind), ID: id})
}

// DomainIDs handles GET /internal/identity/domain-ids, the lookup used by other services when
// a token carries no domain id. The body is not wrapped so clients decode it directly.
func (h *IdentityHandler) DomainIDs(w http.ResponseWriter, r *http.Request) {
	caller, err := httpgate.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	ids, err := h.users.DomainIDs(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = jsonEncode(w, ids)
}
