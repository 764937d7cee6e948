package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAuthRejected EventType = "auth_rejected"
	EventAccessDenied EventType = "access_denied"
	EventRoleAssigned EventType = "role_assigned"
	EventUserDeleted  EventType = "user_deleted"
)

// Actor is the authenticated caller behind an event. Empty for unauthenticated rejections.
type Actor struct {
	SubjectID string `json:"subject_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Event is an audit record. It never carries token text.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Path      string      `json:"path,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, actor Actor, path string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Path:      path,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// RejectionPayload describes a gate rejection.
type RejectionPayload struct {
	State  string `json:"state"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// RoleAssignedPayload payload.
type RoleAssignedPayload struct {
	UserID  string `json:"user_id"`
	OldRole string `json:"old_role"`
	NewRole string `json:"new_role"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
