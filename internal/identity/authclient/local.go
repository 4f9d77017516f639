// Package authclient ships the local implementation of the auth
// collaborator: bcrypt-verified credentials and HS256 session tokens. It is
// used in self-hosted deployments and throughout the test suite; hosted
// deployments swap in an adapter for the managed auth backend.
package authclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/email"
	"wellgate/pkg/platform/sentinel"
	"wellgate/pkg/requestcontext"
)

const (
	issuer            = "wellgate"
	minPasswordLength = 8
	resetTokenTTL     = time.Hour
)

// CredentialStore persists account records for the local client.
type CredentialStore interface {
	Create(ctx context.Context, cred *models.Credential) error
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Credential, error)
	UpdatePassword(ctx context.Context, userID id.UserID, hash []byte) error
}

// Local implements ports.AuthClient against a credential store.
//
// Tokens are HS256 JWTs carrying subject, email and a jti; sign-out revokes
// the jti for the remaining token lifetime. Listener callbacks are invoked
// outside the client's lock, after the triggering operation's state change,
// so a listener may safely schedule further work (but must still defer any
// call back into the client, see ports.AuthClient).
type Local struct {
	creds      CredentialStore
	signingKey []byte
	ttl        time.Duration
	logger     *slog.Logger

	mu           sync.Mutex
	revoked      map[string]time.Time // jti -> token expiry
	resetTokens  map[string]resetGrant
	listeners    map[uint64]func(models.AuthEvent, *models.Session)
	nextListener uint64
}

type resetGrant struct {
	userID    id.UserID
	expiresAt time.Time
}

// NewLocal builds a local auth client.
func NewLocal(creds CredentialStore, signingKey []byte, ttl time.Duration, logger *slog.Logger) *Local {
	return &Local{
		creds:       creds,
		signingKey:  signingKey,
		ttl:         ttl,
		logger:      logger,
		revoked:     make(map[string]time.Time),
		resetTokens: make(map[string]resetGrant),
		listeners:   make(map[uint64]func(models.AuthEvent, *models.Session)),
	}
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignIn verifies credentials and issues a session. Unknown email and wrong
// password produce the same error so the response does not leak which
// accounts exist.
func (c *Local) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	cred, err := c.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	sess, err := c.issueSession(ctx, cred)
	if err != nil {
		return nil, err
	}
	c.emit(models.AuthEventSignedIn, sess)
	return sess, nil
}

// SignUp registers an account and signs it in.
func (c *Local) SignUp(ctx context.Context, emailAddr, password, fullName string) (*models.Session, error) {
	if len(password) < minPasswordLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	if fullName == "" {
		fullName = email.DeriveDisplayName(emailAddr)
	}
	cred := &models.Credential{
		UserID:       id.NewUserID(),
		Email:        emailAddr,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := c.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	sess, err := c.issueSession(ctx, cred)
	if err != nil {
		return nil, err
	}
	c.emit(models.AuthEventSignedIn, sess)
	return sess, nil
}

// SignOut revokes the token's jti and notifies listeners. Unparseable
// tokens are ignored; the signed-out event still fires so local state
// observers converge.
func (c *Local) SignOut(_ context.Context, token string) error {
	if claims := c.parse(token); claims != nil {
		c.mu.Lock()
		c.revoked[claims.ID] = claims.ExpiresAt.Time
		c.mu.Unlock()
	}
	c.emit(models.AuthEventSignedOut, nil)
	return nil
}

// GetSession validates a previously issued token. Absence of a live session
// (missing, malformed, expired, or revoked token) yields (nil, nil).
func (c *Local) GetSession(_ context.Context, token string) (*models.Session, error) {
	claims := c.parse(token)
	if claims == nil {
		return nil, nil
	}

	c.mu.Lock()
	_, isRevoked := c.revoked[claims.ID]
	c.mu.Unlock()
	if isRevoked {
		return nil, nil
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, nil
	}
	return &models.Session{
		UserID:    userID,
		Email:     claims.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// OnAuthStateChange registers a listener; the returned function removes it.
func (c *Local) OnAuthStateChange(fn func(models.AuthEvent, *models.Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.nextListener
	c.nextListener++
	c.listeners[key] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, key)
	}
}

// ResetPasswordForEmail issues a one-hour reset grant and hands the link to
// the mail pipeline (the structured log stands in for the mailer here).
// Unknown emails succeed silently so the endpoint cannot be used to probe
// for accounts.
func (c *Local) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	cred, err := c.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}

	token := uuid.NewString()
	c.mu.Lock()
	c.resetTokens[token] = resetGrant{
		userID:    cred.UserID,
		expiresAt: requestcontext.Now(ctx).Add(resetTokenTTL),
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "password reset link issued",
		"user_id", cred.UserID, "redirect_to", redirectTo)
	return nil
}

// RedeemResetToken consumes a reset grant issued by ResetPasswordForEmail
// and sets the new password. Grants are single-use and expire after an hour.
// This is local-client specific; the hosted backend completes resets through
// its emailed magic link instead.
func (c *Local) RedeemResetToken(ctx context.Context, token, newPassword string) error {
	c.mu.Lock()
	grant, ok := c.resetTokens[token]
	if ok {
		delete(c.resetTokens, token)
	}
	c.mu.Unlock()

	if !ok || requestcontext.Now(ctx).After(grant.expiresAt) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired reset token")
	}
	return c.UpdatePassword(ctx, grant.userID, newPassword)
}

// UpdatePassword replaces the account's password.
func (c *Local) UpdatePassword(ctx context.Context, userID id.UserID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	if err := c.creds.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}
	return nil
}

// issueSession signs a fresh token for the credential.
func (c *Local) issueSession(ctx context.Context, cred *models.Credential) (*models.Session, error) {
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(c.ttl)
	claims := sessionClaims{
		Email: cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cred.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return &models.Session{
		UserID:    cred.UserID,
		Email:     cred.Email,
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

// parse validates signature and expiry, returning nil for anything invalid.
func (c *Local) parse(token string) *sessionClaims {
	if token == "" {
		return nil
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	return &claims
}

// emit invokes listeners outside the lock. Listeners observe events after
// the state change they describe; invocation order across listeners is
// unspecified.
func (c *Local) emit(event models.AuthEvent, sess *models.Session) {
	c.mu.Lock()
	fns := make([]func(models.AuthEvent, *models.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, sess)
	}
}
