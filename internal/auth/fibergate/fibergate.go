// Package fibergate is the edge flavor of the authentication gate, mounted on fiber.
package fibergate

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
)

const securityLocalsKey = "auth.security"

// CORS is the header set attached to rejections.
type CORS = auth.CORS

// DefaultCORS allows any origin.
func DefaultCORS() CORS {
	return auth.DefaultCORS()
}

// Config configures the middleware.
type Config struct {
	Gate *auth.Gate
	CORS CORS
	// Roles returns the roles a request must hold once authenticated. Nil or an empty
	// result means any authenticated identity.
	Roles func(c *fiber.Ctx) []auth.Role
	// OnReject observes every terminal rejection, e.g. for metrics or audit.
	OnReject func(c *fiber.Ctx, out auth.Outcome)
	Logger   *zap.Logger
}

// New returns the gate middleware.
//
// Client supplied identity headers are always removed. After a successful authentication they
// are set again from the verified identity on the request forwarded upstream; the Authorization
// header is left untouched so the next hop can verify the token itself.
func New(cfg Config) fiber.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CORS.Empty() {
		cfg.CORS = DefaultCORS()
	}

	return func(c *fiber.Ctx) error {
		if _, ok := Security(c); ok {
			return c.Next()
		}
		for _, h := range auth.IdentityHeaderNames {
			c.Request().Header.Del(h)
		}

		out := cfg.Gate.Evaluate(c.Path(), c.Get(fiber.HeaderAuthorization))
		if out.State == auth.StateAuthenticated && cfg.Roles != nil {
			out = cfg.Gate.Authorize(out, cfg.Roles(c)...)
		}

		switch out.State {
		case auth.StatePublic:
			return c.Next()
		case auth.StateAuthenticated:
			store(c, out.Security)
			return c.Next()
		}

		logRejection(cfg.Logger, c, out)
		if cfg.OnReject != nil {
			cfg.OnReject(c, out)
		}
		return Reject(c, cfg.CORS, out.Err)
	}
}

// RequireRoles is a route level role gate for handlers mounted after New.
func RequireRoles(cors CORS, roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, ok := Security(c)
		if !ok {
			return Reject(c, cors, auth.ErrContextNotPopulated)
		}
		if decision := auth.Require(sc.Identity, roles...); !decision.Allowed {
			return Reject(c, cors, decision.Err())
		}
		return c.Next()
	}
}

// Security returns the security context stored by New.
func Security(c *fiber.Ctx) (auth.SecurityContext, bool) {
	sc, ok := c.Locals(securityLocalsKey).(auth.SecurityContext)
	return sc, ok
}

// Identity returns the authenticated identity or auth.ErrContextNotPopulated.
func Identity(c *fiber.Ctx) (auth.Identity, error) {
	sc, ok := Security(c)
	if !ok {
		return auth.Identity{}, auth.ErrContextNotPopulated
	}
	return sc.Identity, nil
}

func store(c *fiber.Ctx, sc auth.SecurityContext) {
	c.Locals(securityLocalsKey, sc)
	c.SetUserContext(auth.WithSecurityContext(c.UserContext(), sc))
	for name, value := range auth.IdentityHeaders(sc.Identity) {
		c.Request().Header.Set(name, value)
	}
}

// Reject writes the JSON error body for err with CORS headers attached.
// 401 bodies are {"error": msg}; 403 and 500 carry an error title and a message.
func Reject(c *fiber.Ctx, cors CORS, err error) error {
	authErr := auth.AsError(err)
	if authErr == nil {
		authErr = auth.AsError(auth.NewError(auth.KindUnauthenticated, nil))
	}
	writeCORS(c, cors)

	status := authErr.HTTPStatus()
	switch status {
	case fiber.StatusUnauthorized:
		return c.Status(status).JSON(fiber.Map{"error": authErr.Message})
	case fiber.StatusForbidden:
		return c.Status(status).JSON(fiber.Map{"error": "Forbidden", "message": authErr.Message})
	default:
		return c.Status(status).JSON(fiber.Map{"error": http.StatusText(status), "message": authErr.Message})
	}
}

func writeCORS(c *fiber.Ctx, cors CORS) {
	if origin, vary := cors.AllowOrigin(c.Get(fiber.HeaderOrigin)); origin != "" {
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		if vary {
			c.Vary(fiber.HeaderOrigin)
		}
	}
	if cors.AllowMethods != "" {
		c.Set(fiber.HeaderAccessControlAllowMethods, cors.AllowMethods)
	}
	if cors.AllowHeaders != "" {
		c.Set(fiber.HeaderAccessControlAllowHeaders, cors.AllowHeaders)
	}
}

func logRejection(logger *zap.Logger, c *fiber.Ctx, out auth.Outcome) {
	authErr := auth.AsError(out.Err)
	fields := []zap.Field{
		zap.String("path", c.Path()),
		zap.String("method", c.Method()),
		zap.String("state", out.State.String()),
	}
	if authErr == nil {
		logger.Info("request rejected", fields...)
		return
	}
	fields = append(fields, zap.String("kind", string(authErr.Kind)))
	if authErr.Kind == auth.KindInternal {
		logger.Error("authentication failed", append(fields, zap.String("cause", authErr.Cause), zap.Error(authErr.Err))...)
		return
	}
	logger.Info("request rejected", append(fields, zap.String("reason", authErr.Error()))...)
}
