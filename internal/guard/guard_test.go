package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wellgate/internal/identity/models"
	"wellgate/internal/impersonation"
	id "wellgate/pkg/domain"
)

func authedSnapshot(roles models.RoleState) models.Snapshot {
	return models.Snapshot{
		Identity: models.AuthenticatedIdentity{UserID: id.NewUserID(), Email: "u@example.com"},
		Roles:    roles,
	}
}

func loadingSnapshot() models.Snapshot {
	return models.Snapshot{Loading: true}
}

func participantOverlay() *impersonation.ImpersonatedUser {
	return &impersonation.ImpersonatedUser{
		UserID: "u1",
		Email:  "p@example.com",
		Role:   id.RoleParticipant,
	}
}

func TestDecideLoadingShowsLoadingNotRedirect(t *testing.T) {
	d := Decide(AdminPortal, loadingSnapshot(), nil, "/portal/admin")
	assert.Equal(t, OutcomeLoading, d.Outcome)
	assert.Empty(t, d.Target, "no redirect may fire while identity is still resolving")
}

func TestDecideUnauthenticatedRedirectsToLogin(t *testing.T) {
	d := Decide(ManagerPortal, models.Snapshot{}, nil, "/portal/manager/reports")
	assert.Equal(t, OutcomeRedirect, d.Outcome)
	assert.Equal(t, "/manager/login", d.Target)
	assert.Equal(t, "/portal/manager/reports", d.From, "the origin is preserved for post-login return")
}

func TestDecideMissingRoleRedirectsWithReason(t *testing.T) {
	snap := authedSnapshot(models.RoleState{IsParticipant: true})
	d := Decide(ManagerPortal, snap, nil, "/portal/manager")
	assert.Equal(t, OutcomeRedirect, d.Outcome)
	assert.Equal(t, "/login", d.Target)
	assert.Equal(t, "missing_role:company_manager", d.Reason)
}

func TestDecideAllowsMatchingRole(t *testing.T) {
	snap := authedSnapshot(models.RoleState{IsAdmin: true})
	d := Decide(AdminPortal, snap, nil, "/portal/admin")
	assert.Equal(t, OutcomeAllow, d.Outcome)
}

func TestDecideMultiRoleAccountPassesEachGuard(t *testing.T) {
	companyID := id.NewCompanyID()
	participantID := id.NewParticipantID()
	snap := authedSnapshot(models.RoleState{
		IsAdmin:          true,
		IsManager:        true,
		ManagerCompanyID: &companyID,
		IsParticipant:    true,
		ParticipantID:    &participantID,
	})

	for _, req := range []Requirement{AdminPortal, ManagerPortal, ParticipantPortal} {
		d := Decide(req, snap, nil, "/")
		assert.Equal(t, OutcomeAllow, d.Outcome, "role %s", req.Role)
	}
}

func TestDecideOverlayBeforeLoading(t *testing.T) {
	// An admin impersonating a participant lands on a participant route
	// while their own session is still restoring. The overlay must grant
	// access before the loading check blocks it.
	d := Decide(ParticipantPortal, loadingSnapshot(), participantOverlay(), "/portal/participant")
	assert.Equal(t, OutcomeAllow, d.Outcome)
}

func TestDecideOverlayGrantsMatchingRoleOnly(t *testing.T) {
	snap := authedSnapshot(models.RoleState{IsAdmin: true})

	d := Decide(ParticipantPortal, snap, participantOverlay(), "/")
	assert.Equal(t, OutcomeAllow, d.Outcome)

	d = Decide(ManagerPortal, snap, participantOverlay(), "/")
	assert.Equal(t, OutcomeRedirect, d.Outcome, "a participant overlay does not open manager routes")
}

func TestDecideOverlayNeverSatisfiesAdminOnly(t *testing.T) {
	overlay := &impersonation.ImpersonatedUser{
		UserID: "u1",
		Email:  "f@example.com",
		Role:   id.RoleFacilitator,
	}

	// Even an overlay carrying the facilitator role cannot open an
	// admin-only subtree for a principal who is not really an admin.
	snap := authedSnapshot(models.RoleState{IsParticipant: true})
	d := Decide(AdminPortal, snap, overlay, "/portal/admin")
	assert.Equal(t, OutcomeRedirect, d.Outcome)

	// The real admin still passes on their own role.
	snap = authedSnapshot(models.RoleState{IsAdmin: true})
	d = Decide(AdminPortal, snap, overlay, "/portal/admin")
	assert.Equal(t, OutcomeAllow, d.Outcome)
}

func TestDecideImpersonatingAdminKeepsOwnAccessDuringOverlay(t *testing.T) {
	// Impersonation does not subtract: the admin's real role flags remain
	// in force alongside the overlay.
	snap := authedSnapshot(models.RoleState{IsAdmin: true})
	d := Decide(AdminPortal, snap, participantOverlay(), "/portal/admin")
	assert.Equal(t, OutcomeAllow, d.Outcome)
}

func TestRedirectURL(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want string
	}{
		{
			name: "target only",
			d:    Decision{Target: "/login"},
			want: "/login",
		},
		{
			name: "origin preserved",
			d:    Decision{Target: "/login", From: "/portal/admin"},
			want: "/login?from=%2Fportal%2Fadmin",
		},
		{
			name: "reason and origin",
			d:    Decision{Target: "/login", Reason: "missing_role:participant", From: "/p"},
			want: "/login?from=%2Fp&reason=missing_role%3Aparticipant",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redirectURL(tt.d))
		})
	}
}
