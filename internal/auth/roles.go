package auth

import (
	"fmt"
	"strings"
)

// RolePrefix is the canonical prefix every role carries once normalized.
const RolePrefix = "ROLE_"

// Role is a canonical, prefixed role name.
type Role string

const (
	RoleStudent    Role = "ROLE_STUDENT"
	RoleTeacher    Role = "ROLE_TEACHER"
	RoleAdmin      Role = "ROLE_ADMIN"
	RoleSuperAdmin Role = "ROLE_SUPER_ADMIN"
)

var knownRoles = map[Role]struct{}{
	RoleStudent:    {},
	RoleTeacher:    {},
	RoleAdmin:      {},
	RoleSuperAdmin: {},
}

// NormalizeRole upper-cases, trims and prefixes a raw role claim.
// "teacher", "TEACHER" and "ROLE_TEACHER" all yield RoleTeacher.
func NormalizeRole(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	if r == "" {
		return ""
	}
	if !strings.HasPrefix(r, RolePrefix) {
		r = RolePrefix + r
	}
	return Role(r)
}

// ParseRoles normalizes role names, splitting comma separated entries and skipping blanks.
func ParseRoles(raw ...string) []Role {
	var roles []Role
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if role := NormalizeRole(part); role != "" {
				roles = append(roles, role)
			}
		}
	}
	return roles
}

// Known reports whether r belongs to the closed role set.
func (r Role) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

// Name returns the role without its canonical prefix.
func (r Role) Name() string {
	return strings.TrimPrefix(string(r), RolePrefix)
}

func (r Role) String() string {
	return string(r)
}

// Decision is the outcome of an authorization check. The zero value denies.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the accepting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a rejecting decision.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err returns nil when allowed and a Forbidden error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return Forbidden(d.Reason)
}

// Require accepts only when the identity's role is exactly one of allowed.
// There is no hierarchy: ADMIN does not imply TEACHER.
func Require(identity Identity, allowed ...Role) Decision {
	if identity.SubjectID == "" || identity.Role == "" {
		return Deny("no authenticated identity")
	}
	for _, role := range allowed {
		if NormalizeRole(string(role)) == identity.Role {
			return Allow()
		}
	}
	return Deny(fmt.Sprintf("role %s is not permitted", identity.Role.Name()))
}
