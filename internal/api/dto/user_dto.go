package dto

import (
	"time"

	"github.com/campusnet/academic-platform/internal/domain"
)

// UserResponse is the public view of a directory entry.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	StudentID string    `json:"student_id,omitempty"`
	TeacherID string    `json:"teacher_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role.String(),
		StudentID: u.StudentID,
		TeacherID: u.TeacherID,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
	}
}

// AssignRoleRequest payload for PUT /api/admin/users/{id}/role.
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// DomainIDResponse carries one resolved role specific id.
type DomainIDResponse struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}
