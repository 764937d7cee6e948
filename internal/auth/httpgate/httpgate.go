// Package httpgate is the service flavor of the authentication gate for net/http routers.
//
// Every request is re-verified from its bearer token; the advisory identity headers set by the
// edge are never read.
package httpgate

import (
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

// Config configures the middleware and the route guards built from it.
type Config struct {
	Gate     *auth.Gate
	// CORS headers written on every 401 and 403. Empty means auth.DefaultCORS.
	CORS     auth.CORS
	Logger   *zap.Logger
	OnReject func(r *http.Request, out auth.Outcome)
}

func (cfg Config) cors() auth.CORS {
	if cfg.CORS.Empty() {
		return auth.DefaultCORS()
	}
	return cfg.CORS
}

// Middleware authenticates requests and stores the security context in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc, ok := auth.SecurityContextFrom(r.Context()); ok {
				writeIdentityHeaders(w, sc.Identity)
				next.ServeHTTP(w, r)
				return
			}

			out := cfg.Gate.Evaluate(r.URL.Path, r.Header.Get(auth.HeaderAuthorization))
			switch out.State {
			case auth.StatePublic:
				next.ServeHTTP(w, r)
				return
			case auth.StateAuthenticated:
				writeIdentityHeaders(w, out.Security.Identity)
				next.ServeHTTP(w, r.WithContext(auth.WithSecurityContext(r.Context(), out.Security)))
				return
			}

			reject(cfg, w, r, out)
		})
	}
}

// RequireRoles rejects authenticated requests whose role is not exactly one of roles.
// Requests without a security context are 401.
func (cfg Config) RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return cfg.guard(func(identity auth.Identity) auth.Decision {
		return auth.Require(identity, roles...)
	})
}

// RequirePermission rejects requests whose role lacks permission under policy.
func (cfg Config) RequirePermission(policy *auth.PermissionPolicy, permission string) func(http.Handler) http.Handler {
	return cfg.guard(func(identity auth.Identity) auth.Decision {
		return policy.RequirePermission(identity, permission)
	})
}

func (cfg Config) guard(decide func(auth.Identity) auth.Decision) func(http.Handler) http.Handler {
	cors := cfg.cors()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := auth.IdentityFrom(r.Context())
			if err != nil {
				writeCORS(w, r, cors)
				apperrors.WriteJSON(w, err)
				return
			}
			if decision := decide(identity); !decision.Allowed {
				writeCORS(w, r, cors)
				apperrors.WriteJSON(w, decision.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reject(cfg Config, w http.ResponseWriter, r *http.Request, out auth.Outcome) {
	err := out.Err
	if err == nil {
		err = auth.ErrContextNotPopulated
	}
	authErr := auth.AsError(err)
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("state", out.State.String()),
		zap.String("kind", string(authErr.Kind)),
	}
	if authErr.Kind == auth.KindInternal {
		cfg.Logger.Error("authentication failed", append(fields, zap.String("cause", authErr.Cause), zap.Error(authErr.Err))...)
	} else {
		cfg.Logger.Info("request rejected", append(fields, zap.String("reason", authErr.Error()))...)
	}
	if cfg.OnReject != nil {
		cfg.OnReject(r, out)
	}
	writeCORS(w, r, cfg.cors())
	apperrors.WriteJSON(w, authErr)
}

// writeCORS sets the allow headers on a rejection. The CORS middleware in front of the gate
// adds only the origin on simple requests, which is not enough for browsers to read the body.
func writeCORS(w http.ResponseWriter, r *http.Request, cors auth.CORS) {
	h := w.Header()
	if origin, vary := cors.AllowOrigin(r.Header.Get("Origin")); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		if vary && !slices.Contains(h.Values("Vary"), "Origin") {
			h.Add("Vary", "Origin")
		}
	}
	if cors.AllowMethods != "" {
		h.Set("Access-Control-Allow-Methods", cors.AllowMethods)
	}
	if cors.AllowHeaders != "" {
		h.Set("Access-Control-Allow-Headers", cors.AllowHeaders)
	}
}

func writeIdentityHeaders(w http.ResponseWriter, identity auth.Identity) {
	for name, value := range auth.IdentityHeaders(identity) {
		w.Header().Set(name, value)
	}
}
