package auth

import (
	"slices"
	"strings"
)

// CORS headers attached to gate rejections so browsers can read the error body. Both gate
// flavors write the same three headers on every 401 and 403.
type CORS struct {
	AllowOrigins []string
	AllowMethods string
	AllowHeaders string
}

// DefaultCORS allows any origin.
func DefaultCORS() CORS {
	return CORS{
		AllowOrigins: []string{"*"},
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Authorization,Content-Type,X-Request-ID",
	}
}

// NewCORS builds the settings from configured lists. No origins means DefaultCORS.
func NewCORS(origins, methods, headers []string) CORS {
	if len(origins) == 0 {
		return DefaultCORS()
	}
	return CORS{
		AllowOrigins: origins,
		AllowMethods: strings.Join(methods, ","),
		AllowHeaders: strings.Join(headers, ","),
	}
}

// Empty reports whether no origin is configured.
func (c CORS) Empty() bool {
	return len(c.AllowOrigins) == 0
}

// AllowOrigin returns the Access-Control-Allow-Origin value for a request origin. vary is
// true when the value echoes the origin, so caches must key on it.
func (c CORS) AllowOrigin(origin string) (value string, vary bool) {
	switch {
	case slices.Contains(c.AllowOrigins, "*"):
		return "*", false
	case origin != "" && slices.Contains(c.AllowOrigins, origin):
		return origin, true
	default:
		return "", false
	}
}
