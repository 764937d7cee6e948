package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/events"
)

// AuditedEvents are the event types written to the audit log.
var AuditedEvents = []events.EventType{
	events.EventAuthRejected,
	events.EventAccessDenied,
	events.EventRoleAssigned,
	events.EventUserDeleted,
}

// StartAuditWorker subscribes a zap handler for every audited event type.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	for _, eventType := range AuditedEvents {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			audit.Info("audit event",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.String("subject_id", e.Actor.SubjectID),
				zap.String("role", e.Actor.Role),
				zap.String("path", e.Path),
				zap.String("request_id", e.RequestID),
				zap.Time("timestamp", e.Timestamp),
				zap.Any("payload", e.Payload),
			)
			return nil
		})
	}
}
