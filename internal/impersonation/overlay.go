package impersonation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"wellgate/internal/audit"
	impmetrics "wellgate/internal/impersonation/metrics"
	"wellgate/internal/impersonation/store"
	id "wellgate/pkg/domain"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/platform/sentinel"
)

// StorageKeyPrefix is the fixed key prefix for persisted overlay records.
// One record exists per administrator.
const StorageKeyPrefix = "wellgate:impersonated_user"

// StorageKey returns the persistence key for an administrator's overlay.
func StorageKey(adminID id.UserID) string {
	return StorageKeyPrefix + ":" + adminID.String()
}

// Overlay is the impersonation state machine: Inactive until an explicit
// Start, Active until an explicit Stop. The active record is held in memory
// and persisted so it survives a reload or a deep-link landing on another
// instance.
//
// The overlay is advisory: it is consulted by route guards and display
// banners and never merged into the real authenticated identity.
type Overlay struct {
	store   store.Store
	logger  *slog.Logger
	auditor audit.Publisher
	metrics *impmetrics.Metrics

	mu     sync.RWMutex
	active map[id.UserID]*ImpersonatedUser
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithAuditor attaches an audit publisher for start/stop events.
func WithAuditor(p audit.Publisher) Option {
	return func(o *Overlay) { o.auditor = p }
}

// WithMetrics attaches overlay metrics.
func WithMetrics(m *impmetrics.Metrics) Option {
	return func(o *Overlay) { o.metrics = m }
}

// New builds an Overlay over the given persistence store.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Overlay {
	o := &Overlay{
		store:  st,
		logger: logger,
		active: make(map[id.UserID]*ImpersonatedUser),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates user and activates the overlay for adminID, persisting a
// serialized copy. Validation failure leaves the overlay Inactive: callers
// are trusted admin-initiated code, but the persisted copy is read back on
// later loads and storage content is not guaranteed to stay valid, so the
// invariant is enforced at this boundary regardless.
func (o *Overlay) Start(ctx context.Context, adminID id.UserID, user *ImpersonatedUser) error {
	if err := user.Validate(); err != nil {
		o.metrics.IncStartsRejected()
		return err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize impersonated user")
	}
	if err := o.store.Set(ctx, StorageKey(adminID), payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist impersonation state")
	}

	copied := *user
	o.mu.Lock()
	o.active[adminID] = &copied
	o.mu.Unlock()

	o.metrics.IncStarts()
	o.emitAudit(ctx, audit.ActionImpersonationStart, adminID, user)
	return nil
}

// Stop clears the in-memory overlay and deletes the persisted copy. It
// always succeeds: a persistence failure is logged, in-memory state is
// cleared regardless, and the next Start or Stop heals the stored record.
func (o *Overlay) Stop(ctx context.Context, adminID id.UserID) {
	o.mu.Lock()
	user := o.active[adminID]
	delete(o.active, adminID)
	o.mu.Unlock()

	if err := o.store.Delete(ctx, StorageKey(adminID)); err != nil {
		o.logger.WarnContext(ctx, "failed to delete persisted impersonation record",
			"admin_id", adminID, "error", err)
	}

	o.metrics.IncStops()
	o.emitAudit(ctx, audit.ActionImpersonationStop, adminID, user)
}

// Active returns the in-memory overlay for adminID, or nil when Inactive.
func (o *Overlay) Active(adminID id.UserID) *ImpersonatedUser {
	o.mu.RLock()
	defer o.mu.RUnlock()
	user := o.active[adminID]
	if user == nil {
		return nil
	}
	copied := *user
	return &copied
}

// IsImpersonating reports whether an in-memory overlay is active for adminID.
func (o *Overlay) IsImpersonating(adminID id.UserID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active[adminID] != nil
}

// PersistedUser is the rehydration read: it inspects persisted storage and
// returns a valid overlay record or nil. It never fails: corrupt JSON,
// missing required fields, and out-of-enum roles all yield nil, and the
// stale record heals on the next explicit Start or Stop.
func (o *Overlay) PersistedUser(ctx context.Context, adminID id.UserID) *ImpersonatedUser {
	payload, err := o.store.Get(ctx, StorageKey(adminID))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			o.logger.WarnContext(ctx, "failed to read persisted impersonation record",
				"admin_id", adminID, "error", err)
		}
		return nil
	}

	var user ImpersonatedUser
	if err := json.Unmarshal(payload, &user); err != nil {
		o.metrics.IncRehydrationFailures()
		o.logger.WarnContext(ctx, "discarding unparseable impersonation record",
			"admin_id", adminID, "error", err)
		return nil
	}
	if err := user.Validate(); err != nil {
		o.metrics.IncRehydrationFailures()
		o.logger.WarnContext(ctx, "discarding invalid impersonation record",
			"admin_id", adminID, "error", err)
		return nil
	}
	return &user
}

// Current returns the overlay guards should honor: the in-memory record
// when present, otherwise the persisted copy. Consulting persistence
// directly closes the fresh-load race where a request arrives before the
// overlay has rehydrated.
func (o *Overlay) Current(ctx context.Context, adminID id.UserID) *ImpersonatedUser {
	if user := o.Active(adminID); user != nil {
		return user
	}
	return o.PersistedUser(ctx, adminID)
}

func (o *Overlay) emitAudit(ctx context.Context, action audit.Action, adminID id.UserID, user *ImpersonatedUser) {
	if o.auditor == nil {
		return
	}
	event := audit.Event{
		Action:  action,
		ActorID: adminID.String(),
	}
	if user != nil {
		event.TargetID = user.UserID
		event.Role = user.Role.String()
	}
	if err := o.auditor.Emit(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
