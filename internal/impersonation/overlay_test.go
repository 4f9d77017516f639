package impersonation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellgate/internal/impersonation/store"
	id "wellgate/pkg/domain"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/platform/sentinel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOverlay() (*Overlay, *store.InMemory) {
	st := store.NewInMemory()
	return New(st, testLogger()), st
}

func validUser() *ImpersonatedUser {
	return &ImpersonatedUser{
		UserID: "u1",
		Email:  "alex@example.com",
		Role:   id.RoleParticipant,
	}
}

func TestStartActivatesAndPersists(t *testing.T) {
	overlay, st := newTestOverlay()
	adminID := id.NewUserID()
	ctx := context.Background()

	require.NoError(t, overlay.Start(ctx, adminID, validUser()))

	assert.True(t, overlay.IsImpersonating(adminID))
	got := overlay.Active(adminID)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	_, err := st.Get(ctx, StorageKey(adminID))
	assert.NoError(t, err, "activation writes the persisted copy")
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		user *ImpersonatedUser
	}{
		{"nil user", nil},
		{"missing user id", &ImpersonatedUser{Email: "a@b.com", Role: id.RoleParticipant}},
		{"missing email", &ImpersonatedUser{UserID: "u1", Role: id.RoleParticipant}},
		{"role outside the enumeration", &ImpersonatedUser{UserID: "u1", Email: "a@b.com", Role: "superadmin"}},
		{"empty role", &ImpersonatedUser{UserID: "u1", Email: "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlay, _ := newTestOverlay()
			adminID := id.NewUserID()

			err := overlay.Start(context.Background(), adminID, tt.user)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.False(t, overlay.IsImpersonating(adminID), "a rejected start leaves the overlay inactive")
		})
	}
}

func TestStopClearsMemoryAndStorage(t *testing.T) {
	overlay, st := newTestOverlay()
	adminID := id.NewUserID()
	ctx := context.Background()

	require.NoError(t, overlay.Start(ctx, adminID, validUser()))
	overlay.Stop(ctx, adminID)

	assert.False(t, overlay.IsImpersonating(adminID))
	_, err := st.Get(ctx, StorageKey(adminID))
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "stop removes the persisted record")
}

func TestStopWithoutActiveOverlay(t *testing.T) {
	overlay, _ := newTestOverlay()
	overlay.Stop(context.Background(), id.NewUserID())
}

// failingStore simulates a persistence backend outage.
type failingStore struct {
	getErr, setErr, delErr error
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }
func (f *failingStore) Set(context.Context, string, []byte) error   { return f.setErr }
func (f *failingStore) Delete(context.Context, string) error        { return f.delErr }

func TestStartFailsWhenPersistenceDown(t *testing.T) {
	overlay := New(&failingStore{setErr: errors.New("redis down")}, testLogger())
	adminID := id.NewUserID()

	err := overlay.Start(context.Background(), adminID, validUser())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.False(t, overlay.IsImpersonating(adminID))
}

func TestStopSucceedsWhenPersistenceDown(t *testing.T) {
	st := store.NewInMemory()
	overlay := New(st, testLogger())
	adminID := id.NewUserID()
	ctx := context.Background()
	require.NoError(t, overlay.Start(ctx, adminID, validUser()))

	// Swap in a failing backend; the overlay must still deactivate.
	overlay.store = &failingStore{delErr: errors.New("redis down")}
	overlay.Stop(ctx, adminID)

	assert.False(t, overlay.IsImpersonating(adminID))
}

func TestPersistedUserRoundTrip(t *testing.T) {
	overlay, st := newTestOverlay()
	adminID := id.NewUserID()
	ctx := context.Background()

	fullName := "Alex Martin"
	user := &ImpersonatedUser{
		UserID:           "u1",
		Email:            "alex@example.com",
		FullName:         &fullName,
		Role:             id.RoleCompanyManager,
		CompanyID:        "c9",
		CompanyName:      "Initech",
		ParticipantToken: "ptok",
	}
	require.NoError(t, overlay.Start(ctx, adminID, user))

	// A fresh overlay over the same storage rehydrates the identical record.
	rehydrated := New(st, testLogger()).PersistedUser(ctx, adminID)
	require.NotNil(t, rehydrated)
	assert.Equal(t, user, rehydrated)
}

func TestPersistedUserNeverFails(t *testing.T) {
	adminID := id.NewUserID()
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"corrupt json", `{"userId": "u1", "email":`},
		{"not an object", `"just a string"`},
		{"missing email", `{"userId":"u1","role":"participant"}`},
		{"missing user id", `{"email":"a@b.com","role":"participant"}`},
		{"role outside the enumeration", `{"userId":"u1","email":"a@b.com","role":"superadmin"}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlay, st := newTestOverlay()
			require.NoError(t, st.Set(ctx, StorageKey(adminID), []byte(tt.payload)))

			assert.Nil(t, overlay.PersistedUser(ctx, adminID))
		})
	}

	t.Run("valid record", func(t *testing.T) {
		overlay, st := newTestOverlay()
		payload := `{"userId":"u1","email":"alex@example.com","fullName":"Alex","role":"participant"}`
		require.NoError(t, st.Set(ctx, StorageKey(adminID), []byte(payload)))

		got := overlay.PersistedUser(ctx, adminID)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "alex@example.com", got.Email)
		require.NotNil(t, got.FullName)
		assert.Equal(t, "Alex", *got.FullName)
		assert.Equal(t, id.RoleParticipant, got.Role)
	})

	t.Run("missing record", func(t *testing.T) {
		overlay, _ := newTestOverlay()
		assert.Nil(t, overlay.PersistedUser(ctx, adminID))
	})

	t.Run("storage read failure", func(t *testing.T) {
		overlay := New(&failingStore{getErr: errors.New("redis down")}, testLogger())
		assert.Nil(t, overlay.PersistedUser(ctx, adminID))
	})
}

func TestCurrentPrefersMemoryThenPersistence(t *testing.T) {
	ctx := context.Background()
	adminID := id.NewUserID()

	t.Run("in-memory overlay wins", func(t *testing.T) {
		overlay, _ := newTestOverlay()
		require.NoError(t, overlay.Start(ctx, adminID, validUser()))
		got := overlay.Current(ctx, adminID)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("fresh load falls back to persistence", func(t *testing.T) {
		overlay, st := newTestOverlay()
		require.NoError(t, overlay.Start(ctx, adminID, validUser()))

		// Simulate a fresh process over the same storage.
		reloaded := New(st, testLogger())
		got := reloaded.Current(ctx, adminID)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("inactive", func(t *testing.T) {
		overlay, _ := newTestOverlay()
		assert.Nil(t, overlay.Current(ctx, adminID))
	})
}

func TestOverlaysAreIsolatedPerAdmin(t *testing.T) {
	overlay, _ := newTestOverlay()
	ctx := context.Background()
	first := id.NewUserID()
	second := id.NewUserID()

	require.NoError(t, overlay.Start(ctx, first, validUser()))

	assert.True(t, overlay.IsImpersonating(first))
	assert.False(t, overlay.IsImpersonating(second))

	overlay.Stop(ctx, second)
	assert.True(t, overlay.IsImpersonating(first), "stopping one admin's overlay leaves the other intact")
}

func TestActiveReturnsCopy(t *testing.T) {
	overlay, _ := newTestOverlay()
	adminID := id.NewUserID()
	require.NoError(t, overlay.Start(context.Background(), adminID, validUser()))

	got := overlay.Active(adminID)
	got.Email = "mutated@example.com"

	assert.Equal(t, "alex@example.com", overlay.Active(adminID).Email)
}
