// Package impersonation implements the admin-only identity overlay: a
// validated, persisted record that lets an administrator view the platform
// as another role without switching the real authenticated session.
package impersonation

import (
	"strings"

	id "wellgate/pkg/domain"
	dErrors "wellgate/pkg/domain-errors"
)

// ImpersonatedUser is the overlay identity. It is never merged into the
// real AuthenticatedIdentity; guards and banners consult it in parallel.
//
// Invariants:
//   - UserID and Email are non-empty
//   - Role is one of the closed enumeration (facilitator, company_manager,
//     participant)
//
// An object violating either invariant is invalid and must be discarded,
// including objects read back from persistence, which may predate a schema
// change.
type ImpersonatedUser struct {
	UserID           string  `json:"userId"`
	Email            string  `json:"email"`
	FullName         *string `json:"fullName,omitempty"`
	Role             id.Role `json:"role"`
	CompanyID        string  `json:"companyId,omitempty"`
	CompanyName      string  `json:"companyName,omitempty"`
	ParticipantToken string  `json:"participantToken,omitempty"`
}

// Validate enforces the overlay invariant at the boundary.
func (u *ImpersonatedUser) Validate() error {
	if u == nil {
		return dErrors.New(dErrors.CodeValidation, "impersonated user is required")
	}
	if strings.TrimSpace(u.UserID) == "" {
		return dErrors.New(dErrors.CodeValidation, "impersonated user id is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return dErrors.New(dErrors.CodeValidation, "impersonated user email is required")
	}
	if !u.Role.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "impersonation role must be one of the supported roles, got %q", string(u.Role))
	}
	return nil
}
