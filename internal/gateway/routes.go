package gateway

import (
	"path"
	"sort"
	"strings"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/config"
)

// Route maps a path prefix to an upstream. Roles empty means any authenticated caller.
type Route struct {
	Name     string
	Prefix   string
	Upstream string
	Public   bool
	Roles    []auth.Role
}

func (r Route) matches(p string) bool {
	base := strings.TrimSuffix(r.Prefix, "/")
	return p == base || strings.HasPrefix(p, base+"/")
}

// Table resolves request paths to routes; the longest matching prefix wins.
type Table struct {
	routes []Route
}

// NewTable sorts routes by prefix length.
func NewTable(routes ...Route) *Table {
	sorted := append([]Route(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(strings.TrimSuffix(sorted[i].Prefix, "/")) > len(strings.TrimSuffix(sorted[j].Prefix, "/"))
	})
	return &Table{routes: sorted}
}

// DefaultRoutes is the edge route table of the platform.
func DefaultRoutes(cfg config.GatewayConfig) []Route {
	admins := []auth.Role{auth.RoleAdmin, auth.RoleSuperAdmin}
	return []Route{
		{Name: "auth-login", Prefix: "/api/auth/login", Upstream: cfg.AuthURL, Public: true},
		{Name: "auth-refresh", Prefix: "/api/auth/refresh", Upstream: cfg.AuthURL, Public: true},
		{Name: "auth-bootstrap", Prefix: "/api/auth/bootstrap-admin", Upstream: cfg.AuthURL, Public: true},
		{Name: "auth", Prefix: "/api/auth/", Upstream: cfg.AuthURL},
		{Name: "academic-docs", Prefix: "/v3/api-docs", Upstream: cfg.AcademicURL, Public: true},
		{Name: "academic-admin", Prefix: "/api/admin/", Upstream: cfg.AcademicURL, Roles: admins},
		{Name: "academic", Prefix: "/api/", Upstream: cfg.AcademicURL},
	}
}

// Lookup returns the route for a request path.
func (t *Table) Lookup(p string) (Route, bool) {
	if p == "" {
		return Route{}, false
	}
	cleaned := path.Clean("/" + p)
	for _, r := range t.routes {
		if r.matches(cleaned) {
			return r, true
		}
	}
	return Route{}, false
}

// Match implements auth.PathMatcher: a path is public when its route is.
func (t *Table) Match(p string) bool {
	r, ok := t.Lookup(p)
	return ok && r.Public
}

// RolesFor returns the role requirement of the route serving p.
func (t *Table) RolesFor(p string) []auth.Role {
	r, _ := t.Lookup(p)
	return r.Roles
}

// Routes returns the table in match order.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}
