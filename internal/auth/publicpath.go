package auth

import (
	"path"
	"strings"
)

// DefaultPublicPaths are reachable without a credential: probes, API docs and the
// login/refresh/bootstrap endpoints.
var DefaultPublicPaths = []string{
	"/health",
	"/health/**",
	"/actuator/health",
	"/actuator/health/**",
	"/v3/api-docs",
	"/v3/api-docs/**",
	"/swagger-ui.html",
	"/swagger-ui/**",
	"/api/auth/login",
	"/api/auth/refresh",
	"/api/auth/bootstrap-admin",
}

// PathMatcher decides whether a request path bypasses authentication.
type PathMatcher interface {
	Match(p string) bool
}

// PathList matches exact paths, "/**" subtrees and path.Match globs.
type PathList struct {
	exact    map[string]struct{}
	prefixes []string
	globs    []string
}

// NewPathList compiles patterns.
func NewPathList(patterns ...string) *PathList {
	l := &PathList{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		switch {
		case strings.HasSuffix(p, "/**"):
			l.prefixes = append(l.prefixes, strings.TrimSuffix(p, "**"))
		case strings.ContainsAny(p, "*?["):
			l.globs = append(l.globs, p)
		default:
			l.exact[p] = struct{}{}
		}
	}
	return l
}

// Match implements PathMatcher. The path is cleaned first so "/health/../api" cannot slip through.
func (l *PathList) Match(p string) bool {
	if l == nil || p == "" {
		return false
	}
	cleaned := path.Clean("/" + p)
	if _, ok := l.exact[cleaned]; ok {
		return true
	}
	for _, prefix := range l.prefixes {
		if strings.HasPrefix(cleaned+"/", prefix) {
			return true
		}
	}
	for _, glob := range l.globs {
		if ok, _ := path.Match(glob, cleaned); ok {
			return true
		}
	}
	return false
}

type anyMatcher []PathMatcher

// AnyOf matches when any of matchers does. Nil matchers are skipped.
func AnyOf(matchers ...PathMatcher) PathMatcher {
	var out anyMatcher
	for _, m := range matchers {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (a anyMatcher) Match(p string) bool {
	for _, m := range a {
		if m.Match(p) {
			return true
		}
	}
	return false
}
