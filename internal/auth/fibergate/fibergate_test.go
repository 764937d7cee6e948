package fibergate_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/authtest"
	"github.com/campusnet/academic-platform/internal/auth/fibergate"
)

type echo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
	Auth     string `json:"auth"`
	Subject  string `json:"subject"`
}

func newApp(t *testing.T, cfg fibergate.Config) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(fibergate.New(cfg))
	handler := func(c *fiber.Ctx) error {
		out := echo{
			UserID:   c.Get(auth.HeaderUserID),
			Username: c.Get(auth.HeaderUsername),
			Roles:    c.Get(auth.HeaderRoles),
			Auth:     c.Get(fiber.HeaderAuthorization),
		}
		if identity, err := auth.IdentityFrom(c.UserContext()); err == nil {
			out.Subject = identity.SubjectID
		}
		return c.JSON(out)
	}
	app.Get("/health/live", handler)
	app.Get("/api/users/me", handler)
	app.Put("/api/admin/users/:id/role", handler)
	return app
}

func gateConfig(t *testing.T) fibergate.Config {
	issuer := authtest.Shared(t)
	return fibergate.Config{
		Gate: auth.NewGate(auth.NewPathList(auth.DefaultPublicPaths...), issuer.Codec(), auth.NewResolver()),
		CORS: fibergate.DefaultCORS(),
		Roles: func(c *fiber.Ctx) []auth.Role {
			if strings.HasPrefix(c.Path(), "/api/admin/") {
				return []auth.Role{auth.RoleAdmin, auth.RoleSuperAdmin}
			}
			return nil
		},
	}
}

func do(t *testing.T, app *fiber.App, method, target, authorization string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestPublicPathPassesWithoutToken(t *testing.T) {
	app := newApp(t, gateConfig(t))

	resp, _ := do(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/health/live", "Bearer garbage", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingCredentialIs401WithCORS(t *testing.T) {
	app := newApp(t, gateConfig(t))

	for _, header := range []string{"", "Bearer ", "Token abc"} {
		resp, body := do(t, app, http.MethodGet, "/api/users/me", header, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "Missing or invalid Authorization header", payload["error"])
	}
}

func TestAuthenticatedRequestGetsVerifiedHeaders(t *testing.T) {
	issuer := authtest.Shared(t)
	app := newApp(t, gateConfig(t))
	bearer := issuer.Bearer(t, "u-42", "teacher", map[string]any{"username": "grace"})

	resp, body := do(t, app, http.MethodGet, "/api/users/me", bearer, map[string]string{
		auth.HeaderUserID: "spoofed",
		auth.HeaderRoles:  "ROLE_SUPER_ADMIN",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got echo
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "u-42", got.UserID)
	assert.Equal(t, "grace", got.Username)
	assert.Equal(t, "ROLE_TEACHER", got.Roles)
	assert.Equal(t, bearer, got.Auth)
	assert.Equal(t, "u-42", got.Subject)
}

func TestPublicPathStripsSpoofedHeaders(t *testing.T) {
	app := newApp(t, gateConfig(t))

	resp, body := do(t, app, http.MethodGet, "/health/live", "", map[string]string{auth.HeaderRoles: "ROLE_ADMIN"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got echo
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.Roles)
}

func TestWrongRoleIs403(t *testing.T) {
	issuer := authtest.Shared(t)
	var rejected []auth.State
	cfg := gateConfig(t)
	cfg.OnReject = func(_ *fiber.Ctx, out auth.Outcome) { rejected = append(rejected, out.State) }
	app := newApp(t, cfg)

	resp, body := do(t, app, http.MethodPut, "/api/admin/users/7/role", issuer.Bearer(t, "u-1", "TEACHER", nil), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "Forbidden", payload["error"])
	assert.NotEmpty(t, payload["message"])

	resp, _ = do(t, app, http.MethodPut, "/api/admin/users/7/role", issuer.Bearer(t, "u-1", "ADMIN", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []auth.State{auth.StateRejected}, rejected)
}

func TestInvalidTokenIs401(t *testing.T) {
	foreign := authtest.NewIssuer(t)
	app := newApp(t, gateConfig(t))

	resp, body := do(t, app, http.MethodGet, "/api/users/me", foreign.Bearer(t, "u-1", "ADMIN", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid token signature")
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	cfg := gateConfig(t)
	cfg.CORS = fibergate.CORS{AllowOrigins: []string{"https://portal.example.edu"}, AllowMethods: "GET"}
	app := newApp(t, cfg)

	resp, _ := do(t, app, http.MethodGet, "/api/users/me", "", map[string]string{fiber.HeaderOrigin: "https://portal.example.edu"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "https://portal.example.edu", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	resp, _ = do(t, app, http.MethodGet, "/api/users/me", "", map[string]string{fiber.HeaderOrigin: "https://evil.example"})
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestMiddlewareIsIdempotent(t *testing.T) {
	issuer := authtest.Shared(t)
	cfg := gateConfig(t)
	app := fiber.New()
	app.Use(fibergate.New(cfg))
	app.Use(fibergate.New(cfg))
	app.Get("/api/users/me", fibergate.RequireRoles(cfg.CORS, auth.RoleStudent), func(c *fiber.Ctx) error {
		identity, err := fibergate.Identity(c)
		if err != nil {
			return err
		}
		return c.SendString(identity.SubjectID)
	})

	resp, body := do(t, app, http.MethodGet, "/api/users/me", issuer.Bearer(t, "s-1", "STUDENT", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s-1", string(body))

	resp, _ = do(t, app, http.MethodGet, "/api/users/me", issuer.Bearer(t, "t-1", "TEACHER", nil), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
