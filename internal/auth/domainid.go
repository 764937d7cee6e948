package auth

import (
	"fmt"
	"strings"
)

// DomainKind names a role specific identifier derived from claims.
type DomainKind string

const (
	DomainStudent DomainKind = "studentId"
	DomainTeacher DomainKind = "teacherId"
)

// StudentID resolves the student id of a token.
//
// Order: studentId claim, then sub when the role is STUDENT, then userId when the role is
// STUDENT. Anything else is DomainIDNotFound.
func StudentID(claims *Claims) (string, error) {
	return domainID(claims, DomainStudent)
}

// TeacherID mirrors StudentID for the teacherId claim and the TEACHER role.
func TeacherID(claims *Claims) (string, error) {
	return domainID(claims, DomainTeacher)
}

// DomainID dispatches to StudentID or TeacherID.
func DomainID(claims *Claims, kind DomainKind) (string, error) {
	return domainID(claims, kind)
}

func domainID(claims *Claims, kind DomainKind) (string, error) {
	if claims == nil {
		return "", newError(KindDomainIDNotFound, fmt.Errorf("no claims for %s", kind))
	}

	var explicit FlexString
	var owner Role
	switch kind {
	case DomainStudent:
		explicit, owner = claims.StudentID, RoleStudent
	case DomainTeacher:
		explicit, owner = claims.TeacherID, RoleTeacher
	default:
		return "", newError(KindDomainIDNotFound, fmt.Errorf("unknown domain id %q", kind))
	}

	if id := strings.TrimSpace(explicit.String()); id != "" {
		return id, nil
	}
	if NormalizeRole(claims.Role) == owner {
		if sub := strings.TrimSpace(claims.Subject); sub != "" {
			return sub, nil
		}
		if uid := strings.TrimSpace(claims.UserID.String()); uid != "" {
			return uid, nil
		}
	}
	return "", newError(KindDomainIDNotFound, fmt.Errorf("token carries no %s", kind))
}
