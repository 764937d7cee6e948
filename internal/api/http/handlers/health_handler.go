package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	deps        map[string]Pinger
}

// NewHealthHandler returns a new handler instance. deps maps a dependency name to its probe.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, deps: deps}
}

// Live reports service liveness.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	depStatus := map[string]string{}
	ready := true
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
		} else {
			depStatus[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "ready",
			"dependencies": depStatus,
		})
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
