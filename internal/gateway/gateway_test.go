package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/authtest"
	"github.com/campusnet/academic-platform/internal/auth/fibergate"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/observability"
)

type seen struct {
	Path     string `json:"path"`
	Auth     string `json:"auth"`
	UserID   string `json:"userId"`
	Roles    string `json:"roles"`
	Request  string `json:"requestId"`
	Upstream string `json:"upstream"`
}

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(seen{
			Path:     r.URL.RequestURI(),
			Auth:     r.Header.Get("Authorization"),
			UserID:   r.Header.Get(auth.HeaderUserID),
			Roles:    r.Header.Get(auth.HeaderRoles),
			Request:  r.Header.Get(observability.HeaderRequestID),
			Upstream: name,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newGateway(t *testing.T) (*Gateway, *recorder) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	dispatcher.Subscribe(events.EventAuthRejected, rec.handle)
	dispatcher.Subscribe(events.EventAccessDenied, rec.handle)
	return newGatewayWith(t, dispatcher), rec
}

func newGatewayWith(t *testing.T, dispatcher events.Dispatcher) *Gateway {
	t.Helper()
	issuer := authtest.Shared(t)
	academic := upstream(t, "academic")
	authSvc := upstream(t, "auth")

	table := NewTable(DefaultRoutes(config.GatewayConfig{AcademicURL: academic.URL, AuthURL: authSvc.URL})...)
	g := New(Options{
		Name:        "gateway",
		Version:     "test",
		Table:       table,
		Codec:       issuer.Codec(),
		Resolver:    auth.NewResolver(),
		PublicPaths: auth.NewPathList(auth.DefaultPublicPaths...),
		CORS:        fibergate.DefaultCORS(),
		Dispatcher:  dispatcher,
	})
	return g
}

func request(t *testing.T, g *Gateway, method, target, bearer string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := g.App().Test(req, 5000)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestTableLookup(t *testing.T) {
	table := NewTable(DefaultRoutes(config.GatewayConfig{AcademicURL: "http://academic", AuthURL: "http://auth"})...)

	cases := map[string]string{
		"/api/auth/login":         "auth-login",
		"/api/auth/me":            "auth",
		"/api/admin/users/1/role": "academic-admin",
		"/api/users/me":           "academic",
		"/api/users/../admin/x":   "academic-admin",
		"/v3/api-docs":            "academic-docs",
	}
	for p, want := range cases {
		r, ok := table.Lookup(p)
		require.True(t, ok, p)
		assert.Equal(t, want, r.Name, p)
	}

	_, ok := table.Lookup("/internal/identity/domain-ids")
	assert.False(t, ok)
	assert.True(t, table.Match("/api/auth/refresh"))
	assert.False(t, table.Match("/api/auth/logout"))
	assert.False(t, table.Match("/api/auth/loginx"))
	assert.Equal(t, []auth.Role{auth.RoleAdmin, auth.RoleSuperAdmin}, table.RolesFor("/api/admin/users"))
}

func TestForwardsAuthenticatedRequest(t *testing.T) {
	issuer := authtest.Shared(t)
	g, _ := newGateway(t)
	bearer := issuer.Bearer(t, "t-1", "TEACHER", nil)

	resp, body := request(t, g, http.MethodGet, "/api/users/me?x=1", bearer, map[string]string{
		auth.HeaderUserID: "spoofed",
		auth.HeaderRoles:  "ROLE_SUPER_ADMIN",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got seen
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "academic", got.Upstream)
	assert.Equal(t, "/api/users/me?x=1", got.Path)
	assert.Equal(t, bearer, got.Auth)
	assert.Equal(t, "t-1", got.UserID)
	assert.Equal(t, "ROLE_TEACHER", got.Roles)
	assert.NotEmpty(t, got.Request)
	assert.Equal(t, got.Request, resp.Header.Get(observability.HeaderRequestID))
}

func TestPublicRouteNeedsNoToken(t *testing.T) {
	g, _ := newGateway(t)

	resp, body := request(t, g, http.MethodPost, "/api/auth/login", "", map[string]string{auth.HeaderRoles: "ROLE_ADMIN"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got seen
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "auth", got.Upstream)
	assert.Empty(t, got.Roles)
}

func TestRejections(t *testing.T) {
	issuer := authtest.Shared(t)
	g, rec := newGateway(t)

	resp, _ := request(t, g, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = request(t, g, http.MethodPut, "/api/admin/users/1/role", issuer.Bearer(t, "t-1", "TEACHER", nil), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = request(t, g, http.MethodGet, "/api/admin/users", issuer.Bearer(t, "a-1", "ADMIN", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 2)
	assert.Equal(t, events.EventAuthRejected, rec.events[0].Type)
	assert.Equal(t, events.EventAccessDenied, rec.events[1].Type)
	assert.Equal(t, "t-1", rec.events[1].Actor.SubjectID)
}

func TestLocalEndpoints(t *testing.T) {
	issuer := authtest.Shared(t)
	g, _ := newGateway(t)

	resp, _ := request(t, g, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = request(t, g, http.MethodGet, "/internal/identity/domain-ids", issuer.Bearer(t, "u-1", "ADMIN", nil), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _ = request(t, g, http.MethodGet, "/api/users/me", "Bearer broken", nil)
	resp, body := request(t, g, http.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot observability.Snapshot
	require.NoError(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, int64(1), snapshot.AuthOutcomes["unverified|malformed_token"])
}

func TestRejectionEventsOutliveTheRequest(t *testing.T) {
	dispatcher := events.NewAsyncDispatcher(64, nil)
	rec := &recorder{}
	dispatcher.Subscribe(events.EventAuthRejected, rec.handle)
	g := newGatewayWith(t, dispatcher)

	const n = 20
	for i := 0; i < n; i++ {
		resp, _ := request(t, g, http.MethodGet, fmt.Sprintf("/api/courses/%02d", i), "", map[string]string{
			observability.HeaderRequestID: fmt.Sprintf("req-%02d", i),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	dispatcher.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, n)
	for i, e := range rec.events {
		assert.Equal(t, fmt.Sprintf("/api/courses/%02d", i), e.Path)
		assert.Equal(t, fmt.Sprintf("req-%02d", i), e.RequestID)
	}
}
