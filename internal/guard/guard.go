// Package guard gates access to role-scoped route subtrees. The decision
// core is a pure function over the identity snapshot and the impersonation
// overlay; the middleware adapter translates decisions to HTTP.
package guard

import (
	"wellgate/internal/identity/models"
	"wellgate/internal/impersonation"
	id "wellgate/pkg/domain"
)

// Requirement describes a protected subtree: the role it demands and where
// to send visitors who don't hold it.
//
// AdminOnly requirements are never satisfiable by an impersonation overlay;
// impersonation is strictly a read-down capability.
type Requirement struct {
	Role         id.Role
	AdminOnly    bool
	LoginPath    string
	FallbackPath string
}

// Standard requirements for the three portals.
var (
	AdminPortal = Requirement{
		Role:         id.RoleFacilitator,
		AdminOnly:    true,
		LoginPath:    "/login",
		FallbackPath: "/login",
	}
	ManagerPortal = Requirement{
		Role:         id.RoleCompanyManager,
		LoginPath:    "/manager/login",
		FallbackPath: "/login",
	}
	ParticipantPortal = Requirement{
		Role:         id.RoleParticipant,
		LoginPath:    "/participant/login",
		FallbackPath: "/login",
	}
)

// Outcome is the kind of decision a guard renders.
type Outcome int

const (
	// OutcomeAllow renders the protected content.
	OutcomeAllow Outcome = iota
	// OutcomeLoading shows a loading indicator; no redirect yet.
	OutcomeLoading
	// OutcomeRedirect sends the visitor to Decision.Target.
	OutcomeRedirect
)

// Decision is a guard's verdict. Target and Reason are set only for
// redirects; From records the originating location so sign-in can return
// the visitor where they were headed.
type Decision struct {
	Outcome Outcome
	Target  string
	Reason  string
	From    string
}

// Decide renders the access decision for a protected subtree.
//
// Order matters:
//  1. A matching overlay grants access before anything else, including the
//     loading check, so an impersonated participant is never blocked by the
//     admin's own slower session restoration.
//  2. While identity is still resolving and no overlay matches, show
//     loading; redirecting here would bounce a user whose session is about
//     to restore.
//  3. No authenticated user: redirect to the role's login.
//  4. Authenticated but lacking the role: redirect to the fallback with a
//     reason.
//  5. Otherwise allow. Role flags are checked independently, so an account
//     holding several roles passes each corresponding guard.
func Decide(req Requirement, snap models.Snapshot, overlay *impersonation.ImpersonatedUser, from string) Decision {
	if overlaySatisfies(req, overlay) {
		return Decision{Outcome: OutcomeAllow}
	}

	if snap.Loading {
		return Decision{Outcome: OutcomeLoading}
	}

	if !snap.Identity.IsAuthenticated() {
		return Decision{Outcome: OutcomeRedirect, Target: req.LoginPath, From: from}
	}

	if !snap.Roles.Satisfies(req.Role) {
		return Decision{
			Outcome: OutcomeRedirect,
			Target:  req.FallbackPath,
			Reason:  "missing_role:" + req.Role.String(),
			From:    from,
		}
	}

	return Decision{Outcome: OutcomeAllow}
}

// overlaySatisfies reports whether the overlay grants the requirement.
// Admin-only requirements are excluded: an admin impersonating a lower role
// must not retain admin-gated access through the overlay, and an overlay
// can never mint admin access.
func overlaySatisfies(req Requirement, overlay *impersonation.ImpersonatedUser) bool {
	if overlay == nil || req.AdminOnly {
		return false
	}
	return overlay.Role == req.Role
}
