package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/api/http/handlers"
	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/httpgate"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Docs     *handlers.DocsHandler
	Users    *handlers.UsersHandler
	Identity *handlers.IdentityHandler
	Gate     httpgate.Config
	Policy   *auth.PermissionPolicy
	CORS     config.CORSConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Timeout  time.Duration
}

// NewRouter wires middlewares and routes. Role checks happen twice: coarse permission
// middleware at route entry, then business rules in the service.
func NewRouter(cfg RouteConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.HTTPRequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(errorHandlingMiddleware(cfg.Logger, cfg.Metrics))
	if cfg.Timeout > 0 {
		r.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{auth.HeaderUserID, auth.HeaderUsername, auth.HeaderRoles},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	gate := cfg.Gate
	gate.CORS = auth.NewCORS(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	r.Use(httpgate.Middleware(gate))

	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	r.Get("/v3/api-docs", cfg.Docs.Serve)

	permit := func(permission string) func(http.Handler) http.Handler {
		return gate.RequirePermission(cfg.Policy, permission)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(permit(auth.PermReadProfile)).Get("/users/me", cfg.Users.Me)
		r.With(gate.RequireRoles(auth.RoleAdmin, auth.RoleSuperAdmin), permit(auth.PermListUsers)).Get("/users", cfg.Users.List)

		r.Route("/admin/users/{id}", func(r chi.Router) {
			r.Use(gate.RequireRoles(auth.RoleAdmin, auth.RoleSuperAdmin))
			r.With(permit(auth.PermAssignRole)).Put("/role", cfg.Users.AssignRole)
			r.With(permit(auth.PermDeleteUser)).Delete("/", cfg.Users.Delete)
		})

		r.With(permit(auth.PermStudentSelf)).Get("/students/me", cfg.Identity.StudentMe)
		r.With(permit(auth.PermTeacherSelf)).Get("/teachers/me", cfg.Identity.TeacherMe)
	})

	r.Get("/internal/identity/domain-ids", cfg.Identity.DomainIDs)

	return r
}
