package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellgate/internal/guard"
	"wellgate/internal/identity/authclient"
	"wellgate/internal/identity/service"
	credentialstore "wellgate/internal/identity/store/credential"
	profilestore "wellgate/internal/identity/store/profile"
	rolestore "wellgate/internal/identity/store/roles"
	"wellgate/internal/impersonation"
	impstore "wellgate/internal/impersonation/store"
	id "wellgate/pkg/domain"
)

type fixture struct {
	router  http.Handler
	auth    *authclient.Local
	roles   *rolestore.InMemory
	store   *impstore.InMemory
	overlay *impersonation.Overlay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	auth := authclient.NewLocal(credentialstore.NewInMemory(), []byte("test-key"), time.Hour, log)
	roles := rolestore.NewInMemory()
	resolver := service.NewResolver(roles, profilestore.NewInMemory(), log, nil)
	st := impstore.NewInMemory()
	overlay := impersonation.New(st, log)
	guards := guard.NewMiddleware(auth, resolver, overlay, log, nil)

	h := New(overlay, resolver, log)
	r := chi.NewRouter()
	r.Mount("/admin/impersonation", h.Routes(guards.Authenticate))

	return &fixture{router: r, auth: auth, roles: roles, store: st, overlay: overlay}
}

// signUpAs registers a principal holding the given role grants and returns
// its session token and user id.
func (f *fixture) signUpAs(t *testing.T, email string, grants ...string) (string, id.UserID) {
	t.Helper()
	sess, err := f.auth.SignUp(context.Background(), email, "long-enough-password", "Test User")
	require.NoError(t, err)
	for _, grant := range grants {
		f.roles.Grant(sess.UserID, grant)
	}
	return sess.Token, sess.UserID
}

func (f *fixture) do(t *testing.T, method, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, "/admin/impersonation", reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func validPayload() map[string]any {
	return map[string]any{
		"userId": "u1",
		"email":  "participant@example.com",
		"role":   "participant",
	}
}

func TestImpersonationLifecycle(t *testing.T) {
	f := newFixture(t)
	token, adminID := f.signUpAs(t, "admin@example.com", "facilitator")
	ctx := context.Background()

	rec := f.do(t, http.MethodPut, token, validPayload())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, f.overlay.IsImpersonating(adminID))

	rec = f.do(t, http.MethodGet, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Impersonating bool `json:"impersonating"`
		User          *struct {
			UserID string `json:"userId"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Impersonating)
	require.NotNil(t, status.User)
	assert.Equal(t, "u1", status.User.UserID)

	rec = f.do(t, http.MethodDelete, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.overlay.IsImpersonating(adminID))
	_, err := f.store.Get(ctx, impersonation.StorageKey(adminID))
	assert.Error(t, err, "stop removes the persisted record")
}

func TestStartRejectsInvalidPayloads(t *testing.T) {
	f := newFixture(t)
	token, adminID := f.signUpAs(t, "admin@example.com", "facilitator")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing user id", map[string]any{"email": "a@b.com", "role": "participant"}},
		{"missing email", map[string]any{"userId": "u1", "role": "participant"}},
		{"role outside the enumeration", map[string]any{"userId": "u1", "email": "a@b.com", "role": "superadmin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, f.overlay.IsImpersonating(adminID))
		})
	}
}

func TestNonAdminsAreForbidden(t *testing.T) {
	f := newFixture(t)
	managerToken, _ := f.signUpAs(t, "manager@example.com", "company_manager")
	participantToken, _ := f.signUpAs(t, "participant@example.com", "participant")

	for _, token := range []string{managerToken, participantToken} {
		rec := f.do(t, http.MethodPut, token, validPayload())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	t.Run("anonymous gets 401", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "", validPayload())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOverlayDoesNotOpenImpersonationControls(t *testing.T) {
	// A non-admin with a facilitator overlay planted in storage must still
	// be refused: the gate reads real roles only.
	f := newFixture(t)
	token, userID := f.signUpAs(t, "participant@example.com", "participant")

	payload := `{"userId":"u9","email":"f@example.com","role":"facilitator"}`
	require.NoError(t, f.store.Set(context.Background(), impersonation.StorageKey(userID), []byte(payload)))

	rec := f.do(t, http.MethodPut, token, validPayload())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStopWithoutActiveOverlaySucceeds(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUpAs(t, "admin@example.com", "facilitator")

	rec := f.do(t, http.MethodDelete, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
