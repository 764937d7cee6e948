package events

import (
	"github.com/campusnet/academic-platform/internal/auth"
)

// Rejection builds the audit event for a gate outcome that stopped a request.
// Forbidden outcomes become access_denied, everything else auth_rejected.
func Rejection(out auth.Outcome, path string) Event {
	eventType := EventAuthRejected
	payload := RejectionPayload{State: out.State.String()}
	if authErr := auth.AsError(out.Err); authErr != nil {
		payload.Kind = string(authErr.Kind)
		payload.Reason = authErr.Message
		if authErr.Kind == auth.KindForbidden {
			eventType = EventAccessDenied
		}
	}
	actor := Actor{SubjectID: out.Security.Identity.SubjectID, Role: string(out.Security.Identity.Role)}
	return NewEvent(eventType, actor, path, payload)
}
