package domain

import (
	"time"

	"github.com/campusnet/academic-platform/internal/auth"
)

// UserStatus represents lifecycle states for a directory entry.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a directory entry. ID is the token subject.
type User struct {
	ID        string
	Username  string
	Email     string
	FullName  string
	Role      auth.Role
	StudentID string
	TeacherID string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DomainIDs returns the role specific ids recorded for the user.
func (u *User) DomainIDs() (studentID, teacherID string) {
	return u.StudentID, u.TeacherID
}
