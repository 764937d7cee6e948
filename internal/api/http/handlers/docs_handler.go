package handlers

import (
	"net/http"
)

// DocsHandler serves a static OpenAPI description of the academic service.
type DocsHandler struct {
	doc map[string]any
}

// NewDocsHandler builds the document once.
func NewDocsHandler(serviceName, version string) *DocsHandler {
	bearer := []map[string][]string{{"bearerAuth": {}}}
	op := func(summary string, secured bool) map[string]any {
		o := map[string]any{"summary": summary}
		if secured {
			o["security"] = bearer
		}
		return o
	}
	return &DocsHandler{doc: map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": serviceName, "version": version},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"paths": map[string]any{
			"/health/live":                  map[string]any{"get": op("Liveness probe", false)},
			"/health/ready":                 map[string]any{"get": op("Readiness probe", false)},
			"/api/users/me":                 map[string]any{"get": op("Profile of the caller", true)},
			"/api/users":                    map[string]any{"get": op("List users (ADMIN, SUPER_ADMIN)", true)},
			"/api/admin/users/{id}/role":    map[string]any{"put": op("Assign a role (SUPER_ADMIN)", true)},
			"/api/admin/users/{id}":         map[string]any{"delete": op("Delete a user (ADMIN, SUPER_ADMIN)", true)},
			"/api/students/me":              map[string]any{"get": op("Student id of the caller (STUDENT)", true)},
			"/api/teachers/me":              map[string]any{"get": op("Teacher id of the caller (TEACHER)", true)},
			"/internal/identity/domain-ids": map[string]any{"get": op("Domain ids of the caller", true)},
		},
	}}
}

// Serve handles GET /v3/api-docs.
func (h *DocsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsonEncode(w, h.doc)
}
