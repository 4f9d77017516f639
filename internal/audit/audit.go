// Package audit records security-relevant identity events: sign-ins,
// sign-outs, and impersonation start/stop. Events go to Kafka when a broker
// is configured and to the structured log otherwise; emission is fail-open
// so an audit outage never blocks authentication.
package audit

import (
	"context"
	"time"
)

// Action labels an audit event.
type Action string

const (
	ActionSignIn             Action = "sign_in"
	ActionSignOut            Action = "sign_out"
	ActionImpersonationStart Action = "impersonation_start"
	ActionImpersonationStop  Action = "impersonation_stop"
)

// Event is a single audit record. Publishers fill ID and Timestamp when the
// caller leaves them zero.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Device    string    `json:"device,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits audit events.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
