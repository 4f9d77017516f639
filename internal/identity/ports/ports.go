// Package ports declares the collaborator contracts consumed by the
// identity plane. Implementations live under internal/identity/store and
// internal/identity/authclient; services depend only on these interfaces.
package ports

import (
	"context"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
)

// AuthClient is the authentication collaborator. The shipped implementation
// is the local JWT client; a hosted BaaS adapter satisfies the same surface.
type AuthClient interface {
	// SignIn authenticates credentials and returns a live session.
	SignIn(ctx context.Context, email, password string) (*models.Session, error)

	// SignUp registers an account and returns a live session for it.
	SignUp(ctx context.Context, email, password, fullName string) (*models.Session, error)

	// SignOut invalidates the given session token. Implementations emit a
	// SIGNED_OUT auth event regardless of whether the token was live.
	SignOut(ctx context.Context, token string) error

	// GetSession validates a previously issued token. A missing, malformed,
	// expired, or revoked token yields (nil, nil): absence of a session is
	// not an error. Errors are reserved for infrastructure failures.
	GetSession(ctx context.Context, token string) (*models.Session, error)

	// OnAuthStateChange registers a callback fired on sign-in, sign-out and
	// token refresh. The returned function unsubscribes. Callbacks must not
	// call back into the client synchronously; see identity.Manager for the
	// deferral that guarantees this.
	OnAuthStateChange(fn func(event models.AuthEvent, session *models.Session)) (unsubscribe func())

	// ResetPasswordForEmail starts a password reset flow. Implementations
	// must not reveal whether the email exists.
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error

	// UpdatePassword replaces the password of the given account.
	UpdatePassword(ctx context.Context, userID id.UserID, newPassword string) error
}

// ProfileStore fetches profile records by account.
type ProfileStore interface {
	// FindByUserID returns the profile or sentinel.ErrNotFound.
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error)

	// Upsert creates or replaces the profile for its UserID.
	Upsert(ctx context.Context, profile *models.Profile) error
}

// RoleStore answers the role queries behind role resolution.
type RoleStore interface {
	// RolesByUserID returns the raw role-name grants held by the account.
	// The set may contain names outside the supported enumeration; callers
	// ignore those.
	RolesByUserID(ctx context.Context, userID id.UserID) ([]string, error)

	// CompanyIDByManager returns the single company the account manages,
	// or nil when it manages none.
	CompanyIDByManager(ctx context.Context, userID id.UserID) (*id.CompanyID, error)

	// ParticipantIDByUser returns the participant record bound to the
	// account, or nil when there is none.
	ParticipantIDByUser(ctx context.Context, userID id.UserID) (*id.ParticipantID, error)
}
