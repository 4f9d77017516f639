package domain

import dErrors "wellgate/pkg/domain-errors"

// Role is a domain value identifying a platform role.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation. Role grants coming back
// from the backend may contain strings outside this set; those are ignored
// by the resolver, not rejected.
type Role string

// Supported roles.
//
// Facilitator is the platform-level administrator role ("admin" in derived
// role flags). Company managers are scoped to a single company. Participants
// are end users completing diagnostics.
const (
	RoleFacilitator    Role = "facilitator"
	RoleCompanyManager Role = "company_manager"
	RoleParticipant    Role = "participant"
)

// validRoles is the single source of truth for the closed enumeration.
var validRoles = map[Role]bool{
	RoleFacilitator:    true,
	RoleCompanyManager: true,
	RoleParticipant:    true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or outside the
// enumeration; no other errors are expected.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role: %s", s)
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
