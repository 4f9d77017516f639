package guard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellgate/internal/identity/models"
	"wellgate/internal/identity/service"
	"wellgate/internal/impersonation"
	impstore "wellgate/internal/impersonation/store"
	id "wellgate/pkg/domain"
	"wellgate/pkg/requestcontext"
)

// staticAuth resolves a single known token.
type staticAuth struct {
	token string
	sess  *models.Session
	err   error
}

func (s *staticAuth) SignIn(context.Context, string, string) (*models.Session, error) {
	return nil, nil
}

func (s *staticAuth) SignUp(context.Context, string, string, string) (*models.Session, error) {
	return nil, nil
}

func (s *staticAuth) SignOut(context.Context, string) error { return nil }

func (s *staticAuth) GetSession(_ context.Context, token string) (*models.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token == s.token {
		return s.sess, nil
	}
	return nil, nil
}

func (s *staticAuth) OnAuthStateChange(func(models.AuthEvent, *models.Session)) func() {
	return func() {}
}

func (s *staticAuth) ResetPasswordForEmail(context.Context, string, string) error { return nil }

func (s *staticAuth) UpdatePassword(context.Context, id.UserID, string) error { return nil }

type staticRoles struct {
	grants        []string
	participantID *id.ParticipantID
}

func (s *staticRoles) RolesByUserID(context.Context, id.UserID) ([]string, error) {
	return s.grants, nil
}

func (s *staticRoles) CompanyIDByManager(context.Context, id.UserID) (*id.CompanyID, error) {
	return nil, nil
}

func (s *staticRoles) ParticipantIDByUser(context.Context, id.UserID) (*id.ParticipantID, error) {
	return s.participantID, nil
}

type noProfiles struct{}

func (noProfiles) FindByUserID(context.Context, id.UserID) (*models.Profile, error) {
	return nil, nil
}

func (noProfiles) Upsert(context.Context, *models.Profile) error { return nil }

func newTestMiddleware(auth *staticAuth, roles *staticRoles, overlayStore impstore.Store) *Middleware {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if overlayStore == nil {
		overlayStore = impstore.NewInMemory()
	}
	resolver := service.NewResolver(roles, noProfiles{}, log, nil)
	overlay := impersonation.New(overlayStore, log)
	return NewMiddleware(auth, resolver, overlay, log, nil)
}

func okHandler(seen *id.UserID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = requestcontext.UserID(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAllowsMatchingRole(t *testing.T) {
	userID := id.NewUserID()
	auth := &staticAuth{token: "tok", sess: &models.Session{UserID: userID, Email: "a@b.com", Token: "tok"}}
	mw := newTestMiddleware(auth, &staticRoles{grants: []string{"facilitator"}}, nil)

	var seen id.UserID
	handler := mw.Require(AdminPortal)(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/portal/admin", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, seen, "the authenticated user id is injected into the request context")
}

func TestRequireAcceptsSessionCookie(t *testing.T) {
	userID := id.NewUserID()
	auth := &staticAuth{token: "tok", sess: &models.Session{UserID: userID, Token: "tok"}}
	mw := newTestMiddleware(auth, &staticRoles{grants: []string{"facilitator"}}, nil)

	handler := mw.Require(AdminPortal)(okHandler(nil))
	req := httptest.NewRequest(http.MethodGet, "/portal/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRedirectsAnonymousToLogin(t *testing.T) {
	mw := newTestMiddleware(&staticAuth{}, &staticRoles{}, nil)
	handler := mw.Require(ManagerPortal)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/portal/manager/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/manager/login?from=%2Fportal%2Fmanager%2Freports", rec.Header().Get("Location"))
}

func TestRequireRedirectsMissingRole(t *testing.T) {
	userID := id.NewUserID()
	auth := &staticAuth{token: "tok", sess: &models.Session{UserID: userID, Token: "tok"}}
	mw := newTestMiddleware(auth, &staticRoles{grants: []string{"facilitator"}}, nil)

	handler := mw.Require(ParticipantPortal)(okHandler(nil))
	req := httptest.NewRequest(http.MethodGet, "/portal/participant", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "/login?")
	assert.Contains(t, loc, "missing_role%3Aparticipant")
}

func TestRequireUnavailableOnSessionBackendFailure(t *testing.T) {
	mw := newTestMiddleware(&staticAuth{err: assert.AnError}, &staticRoles{}, nil)
	handler := mw.Require(AdminPortal)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/portal/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireHonorsPersistedOverlayOnFreshLoad(t *testing.T) {
	// The admin's overlay record already sits in storage, but this process
	// has no in-memory overlay state. The guard must still honor it.
	adminID := id.NewUserID()
	auth := &staticAuth{token: "tok", sess: &models.Session{UserID: adminID, Token: "tok"}}
	st := impstore.NewInMemory()
	payload := `{"userId":"u1","email":"p@example.com","role":"participant"}`
	require.NoError(t, st.Set(context.Background(), impersonation.StorageKey(adminID), []byte(payload)))

	mw := newTestMiddleware(auth, &staticRoles{grants: []string{"facilitator"}}, st)
	handler := mw.Require(ParticipantPortal)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/portal/participant", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate(t *testing.T) {
	userID := id.NewUserID()
	auth := &staticAuth{token: "tok", sess: &models.Session{UserID: userID, Token: "tok"}}
	mw := newTestMiddleware(auth, &staticRoles{}, nil)

	var seen id.UserID
	handler := mw.Authenticate(okHandler(&seen))

	t.Run("valid session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, seen)
	})

	t.Run("missing session gets 401, not a redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
