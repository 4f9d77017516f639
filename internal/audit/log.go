package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"wellgate/pkg/requestcontext"
)

// LogPublisher writes audit events to the structured log. It is the default
// publisher when no Kafka brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds a log-backed publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Emit logs the event at info level. Never fails.
func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	fill(ctx, &event)
	p.logger.InfoContext(ctx, "audit",
		"audit_id", event.ID,
		"action", event.Action,
		"actor_id", event.ActorID,
		"target_id", event.TargetID,
		"role", event.Role,
		"detail", event.Detail,
		"device", event.Device,
		"client_ip", event.ClientIP,
		"request_id", event.RequestID,
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

// fill populates ID, request metadata and Timestamp when the caller left
// them zero. Device and client IP come from the middleware chain, so a
// sign-in event records which display device initiated it.
func fill(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Device == "" {
		event.Device = requestcontext.DeviceName(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
}
