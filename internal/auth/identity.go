package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Identity is the canonical caller representation used by business code.
type Identity struct {
	SubjectID string
	Username  string
	Role      Role
}

// Resolver derives an Identity from verified claims.
type Resolver struct {
	strict    bool
	tolerated map[Role]struct{}
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithStrictRoles rejects roles outside the closed set and the tolerated list.
func WithStrictRoles(strict bool) ResolverOption {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// WithToleratedRoles admits extra roles in strict mode, e.g. a service specific fallback role.
func WithToleratedRoles(roles ...Role) ResolverOption {
	return func(r *Resolver) {
		for _, role := range roles {
			if n := NormalizeRole(string(role)); n != "" {
				r.tolerated[n] = struct{}{}
			}
		}
	}
}

// NewResolver builds a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{tolerated: make(map[Role]struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve requires sub and role and normalizes the role.
func (r *Resolver) Resolve(claims *Claims) (Identity, error) {
	if claims == nil {
		return Identity{}, newError(KindIncompleteIdentity, errors.New("no claims"))
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, newError(KindIncompleteIdentity, errors.New("missing sub claim"))
	}
	role := NormalizeRole(claims.Role)
	if role == "" {
		return Identity{}, newError(KindIncompleteIdentity, errors.New("missing role claim"))
	}
	if r.strict && !role.Known() {
		if _, ok := r.tolerated[role]; !ok {
			return Identity{}, newError(KindIncompleteIdentity, fmt.Errorf("unsupported role %q", role.Name()))
		}
	}
	return Identity{
		SubjectID: subject,
		Username:  strings.TrimSpace(claims.Username),
		Role:      role,
	}, nil
}
