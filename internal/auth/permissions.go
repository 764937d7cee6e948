package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Permissions checked by handlers on top of the coarse role gate.
const (
	PermAssignRole  = "user:assign-role"
	PermDeleteUser  = "user:delete"
	PermListUsers   = "user:list"
	PermReadProfile = "profile:read"
	PermStudentSelf = "student:self"
	PermTeacherSelf = "teacher:self"
)

// The model has no role_definition section, so no role ever inherits another.
const permissionModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

// Grant binds a role to a permission.
type Grant struct {
	Role       Role
	Permission string
}

// DefaultGrants is the permission table of the academic service.
func DefaultGrants(extraProfileRoles ...Role) []Grant {
	grants := []Grant{
		{RoleSuperAdmin, PermAssignRole},
		{RoleAdmin, PermDeleteUser},
		{RoleSuperAdmin, PermDeleteUser},
		{RoleAdmin, PermListUsers},
		{RoleSuperAdmin, PermListUsers},
		{RoleStudent, PermReadProfile},
		{RoleTeacher, PermReadProfile},
		{RoleAdmin, PermReadProfile},
		{RoleSuperAdmin, PermReadProfile},
		{RoleStudent, PermStudentSelf},
		{RoleTeacher, PermTeacherSelf},
	}
	for _, role := range extraProfileRoles {
		grants = append(grants, Grant{NormalizeRole(string(role)), PermReadProfile})
	}
	return grants
}

// PermissionPolicy answers role/permission questions with exact matching.
type PermissionPolicy struct {
	enforcer casbin.IEnforcer
}

// NewPermissionPolicy loads the model and the given grants into a synced enforcer.
func NewPermissionPolicy(grants []Grant) (*PermissionPolicy, error) {
	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return nil, fmt.Errorf("parse permission model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create permission enforcer: %w", err)
	}
	for _, g := range grants {
		if _, err := enforcer.AddPolicy(string(g.Role), g.Permission); err != nil {
			return nil, fmt.Errorf("add grant %s %s: %w", g.Role, g.Permission, err)
		}
	}
	return &PermissionPolicy{enforcer: enforcer}, nil
}

// RequirePermission allows when the identity's role is granted permission.
func (p *PermissionPolicy) RequirePermission(identity Identity, permission string) Decision {
	if identity.SubjectID == "" || identity.Role == "" {
		return Deny("no authenticated identity")
	}
	ok, err := p.enforcer.Enforce(string(identity.Role), permission)
	if err != nil {
		return Deny(fmt.Sprintf("permission check failed: %v", err))
	}
	if !ok {
		return Deny(fmt.Sprintf("role %s lacks permission %s", identity.Role.Name(), permission))
	}
	return Allow()
}

// RolesFor lists the roles granted permission.
func (p *PermissionPolicy) RolesFor(permission string) []Role {
	rules, err := p.enforcer.GetFilteredPolicy(1, permission)
	if err != nil {
		return nil
	}
	roles := make([]Role, 0, len(rules))
	for _, rule := range rules {
		if len(rule) > 0 {
			roles = append(roles, Role(rule[0]))
		}
	}
	return roles
}
