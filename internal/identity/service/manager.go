// Package service implements the identity plane: the per-principal session
// Manager and the shared role Resolver.
package service

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wellgate/internal/audit"
	identitymetrics "wellgate/internal/identity/metrics"
	"wellgate/internal/identity/models"
	"wellgate/internal/identity/ports"
	id "wellgate/pkg/domain"
	dErrors "wellgate/pkg/domain-errors"
)

// Manager owns AuthenticatedIdentity and RoleState for a single principal.
// It is the only writer of both; guards and UI surfaces read snapshots.
//
// Ordering guarantees:
//   - A sign-out clears local state synchronously, before the collaborator
//     round-trip. Stale identity must never be observable after SignOut
//     returns, even while the network call is in flight.
//   - Resolver results are applied only if the identity they were computed
//     for is still current. Each mutation bumps an epoch; a resolver captures
//     (user id, epoch) at launch and its result is discarded on mismatch.
//   - Session restoration and auth-change notifications are idempotent and
//     convergent: applying either, or both in any order, yields the same
//     final state for a given session.
type Manager struct {
	auth     ports.AuthClient
	resolver *Resolver
	logger   *slog.Logger
	metrics  *identitymetrics.Metrics
	auditor  audit.Publisher

	// resetRedirect is handed to the collaborator on password resets.
	resetRedirect string

	mu       sync.Mutex
	identity models.AuthenticatedIdentity
	roles    models.RoleState
	loading  bool
	epoch    uint64

	subs    map[uint64]chan models.Snapshot
	nextSub uint64

	unsubscribe func()
	wg          sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics attaches identity metrics.
func WithMetrics(m *identitymetrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithAuditor attaches an audit publisher for sign-in/out events.
func WithAuditor(p audit.Publisher) ManagerOption {
	return func(mgr *Manager) { mgr.auditor = p }
}

// WithResetRedirect sets the redirect target embedded in reset links.
func WithResetRedirect(url string) ManagerOption {
	return func(mgr *Manager) { mgr.resetRedirect = url }
}

// NewManager builds a Manager and subscribes it to the auth collaborator's
// state-change feed. Call Close to unsubscribe and drain in-flight resolvers.
func NewManager(auth ports.AuthClient, resolver *Resolver, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		auth:     auth,
		resolver: resolver,
		logger:   logger,
		loading:  true,
		subs:     make(map[uint64]chan models.Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = auth.OnAuthStateChange(m.HandleAuthStateChange)
	return m
}

// Close unsubscribes from the collaborator and waits for in-flight
// resolutions to finish. Subscriber channels are not closed; their cancel
// functions remain valid.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.wg.Wait()
}

// Snapshot returns the current identity view.
func (m *Manager) Snapshot() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers an observer of identity state transitions. The channel
// has capacity one and always carries the latest snapshot: intermediate
// states may be skipped, but the terminal state of any mutation sequence is
// always delivered. The returned function cancels the subscription.
func (m *Manager) Subscribe() (<-chan models.Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.nextSub
	m.nextSub++
	ch := make(chan models.Snapshot, 1)
	m.subs[key] = ch
	ch <- m.snapshotLocked()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, key)
	}
	return ch, cancel
}

// RestoreSession asks the collaborator whether the persisted token still
// maps to a live session. On success identity is populated immediately and
// role/profile resolution runs asynchronously; the snapshot reports
// Loading until it settles. With no live session, loading simply completes.
func (m *Manager) RestoreSession(ctx context.Context, token string) error {
	sess, err := m.auth.GetSession(ctx, token)
	if err != nil {
		m.finishLoading()
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "session restoration failed")
	}
	if sess == nil {
		m.finishLoading()
		return nil
	}
	m.adoptSession(ctx, sess)
	return nil
}

// HandleAuthStateChange is the push-style subscription from the auth
// collaborator. A present session schedules profile and role resolution on a
// fresh goroutine rather than inline: calling back into the auth client from
// within its own notification handler risks deadlock, so the callback path
// must not touch the collaborator synchronously. An absent session clears
// all local state before returning.
func (m *Manager) HandleAuthStateChange(event models.AuthEvent, sess *models.Session) {
	if sess == nil {
		m.clear()
		return
	}
	m.adoptSession(context.Background(), sess)
}

// SignIn authenticates and adopts the resulting session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	ctx, span := m.resolver.tracer.Start(ctx, "identity.SignIn")
	defer span.End()

	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		m.metrics.IncSignInFailures()
		return nil, err
	}
	m.metrics.IncSignIns()
	m.emitAudit(ctx, audit.ActionSignIn, sess.UserID, "")
	m.adoptSession(ctx, sess)
	return sess, nil
}

// SignUp registers an account and adopts the resulting session.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) (*models.Session, error) {
	ctx, span := m.resolver.tracer.Start(ctx, "identity.SignUp")
	defer span.End()

	sess, err := m.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		return nil, err
	}
	m.metrics.IncSignUps()
	m.adoptSession(ctx, sess)
	return sess, nil
}

// SignOut clears local identity and role state synchronously, then asks the
// collaborator to invalidate the session. The local clear happens regardless
// of the collaborator outcome: stale identity must never survive a sign-out
// request.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	token := m.identity.Token
	userID := m.identity.UserID
	m.clearLocked()
	m.mu.Unlock()

	m.metrics.IncSignOuts()
	if !userID.IsNil() {
		m.emitAudit(ctx, audit.ActionSignOut, userID, "")
	}

	if err := m.auth.SignOut(ctx, token); err != nil {
		m.logger.WarnContext(ctx, "collaborator sign-out failed, local state already cleared",
			"error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "sign-out did not reach the auth backend")
	}
	return nil
}

// ResetPassword starts the collaborator's password reset flow.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	return m.auth.ResetPasswordForEmail(ctx, email, m.resetRedirect)
}

// UpdatePassword replaces the current user's password.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	m.mu.Lock()
	userID := m.identity.UserID
	m.mu.Unlock()
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "no authenticated user")
	}
	return m.auth.UpdatePassword(ctx, userID, newPassword)
}

// RefreshProfile re-fetches the profile and re-runs role resolution for the
// current user. No-op when nobody is signed in. Runs synchronously; the
// stale guard still applies in case the identity changes concurrently.
func (m *Manager) RefreshProfile(ctx context.Context) {
	m.mu.Lock()
	userID := m.identity.UserID
	epoch := m.epoch
	m.mu.Unlock()
	if userID.IsNil() {
		return
	}
	m.resolveAndApply(ctx, userID, epoch)
}

// adoptSession installs the session as the authenticated identity and
// schedules role/profile resolution. Idempotent for a given session: roles
// and profile are keyed purely off the user id, so overlapping adoptions
// converge on the same state.
func (m *Manager) adoptSession(ctx context.Context, sess *models.Session) {
	m.mu.Lock()
	m.identity.UserID = sess.UserID
	m.identity.Email = sess.Email
	m.identity.Token = sess.Token
	m.loading = true
	m.epoch++
	epoch := m.epoch
	m.notifyLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolveAndApply(context.WithoutCancel(ctx), sess.UserID, epoch)
	}()
}

// resolveAndApply fetches profile and roles for userID and applies them only
// if (userID, epoch) still describes the current identity. Mismatched
// results are discarded: the terminal state of rapid sign-in/sign-out
// sequences always wins over slower in-flight resolutions.
func (m *Manager) resolveAndApply(ctx context.Context, userID id.UserID, epoch uint64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("user.id", userID.String()))

	profile := m.resolver.FetchProfile(ctx, userID)
	roles := m.resolver.ResolveRoles(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity.UserID != userID || m.epoch != epoch {
		m.metrics.IncStaleResultsDiscarded()
		m.logger.DebugContext(ctx, "discarding stale resolver result",
			"resolved_user_id", userID)
		return
	}
	m.identity.Profile = profile
	m.roles = roles
	m.loading = false
	m.notifyLocked()
}

func (m *Manager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// clearLocked resets identity and roles to their zero values and bumps the
// epoch so in-flight resolutions are discarded. Caller holds mu.
func (m *Manager) clearLocked() {
	m.identity = models.AuthenticatedIdentity{}
	m.roles = models.RoleState{}
	m.loading = false
	m.epoch++
	m.notifyLocked()
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loading {
		m.loading = false
		m.notifyLocked()
	}
}

func (m *Manager) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Identity: m.identity,
		Roles:    m.roles,
		Loading:  m.loading,
	}
}

// notifyLocked pushes the current snapshot to every subscriber, replacing an
// undelivered older snapshot so slow consumers always observe the latest
// state. Caller holds mu.
func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Manager) emitAudit(ctx context.Context, action audit.Action, userID id.UserID, detail string) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Emit(ctx, audit.Event{
		Action:  action,
		ActorID: userID.String(),
		Detail:  detail,
	}); err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
