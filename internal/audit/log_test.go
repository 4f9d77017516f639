package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellgate/pkg/requestcontext"
)

func TestFill_RequestMetadata(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithDeviceName(ctx, "Chrome on Linux")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
	ctx = requestcontext.WithTime(ctx, now)

	event := Event{Action: ActionSignIn, ActorID: "actor-1"}
	fill(ctx, &event)

	require.NotEmpty(t, event.ID)
	assert.Equal(t, "Chrome on Linux", event.Device)
	assert.Equal(t, "203.0.113.7", event.ClientIP)
	assert.Equal(t, "req-42", event.RequestID)
	assert.Equal(t, now, event.Timestamp)
}

func TestFill_KeepsCallerValues(t *testing.T) {
	ctx := requestcontext.WithDeviceName(context.Background(), "Chrome on Linux")

	event := Event{
		ID:       "fixed-id",
		Action:   ActionSignOut,
		ActorID:  "actor-1",
		Device:   "Safari on iOS",
		ClientIP: "198.51.100.4",
	}
	fill(ctx, &event)

	assert.Equal(t, "fixed-id", event.ID)
	assert.Equal(t, "Safari on iOS", event.Device)
	assert.Equal(t, "198.51.100.4", event.ClientIP)
}

func TestFill_MissingMetadataLeavesBlanks(t *testing.T) {
	event := Event{Action: ActionSignIn, ActorID: "actor-1"}
	fill(context.Background(), &event)

	assert.Empty(t, event.Device)
	assert.Empty(t, event.ClientIP)
	assert.False(t, event.Timestamp.IsZero())
}
