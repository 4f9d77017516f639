// Package models defines the identity-plane domain objects: the
// authenticated identity, its profile, and the role state derived from
// backend role grants.
package models

import (
	"time"

	id "wellgate/pkg/domain"
)

// Profile carries the presentational attributes attached to an account.
// All fields are optional; a missing profile is a degraded-but-usable state,
// never a fatal one.
type Profile struct {
	UserID         id.UserID `json:"user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	LogoURL        string    `json:"logo_url,omitempty"`
	ThemeColor     string    `json:"theme_color,omitempty"`
	Certifications []string  `json:"certifications,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session is what the auth collaborator returns for a live authentication.
type Session struct {
	UserID    id.UserID `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthenticatedIdentity is the single source of truth for "who is really
// logged in".
//
// Invariant: UserID is non-nil iff a valid session exists. Profile may be
// nil while identity is present (fetch pending or failed).
type AuthenticatedIdentity struct {
	UserID  id.UserID `json:"user_id"`
	Email   string    `json:"email,omitempty"`
	Token   string    `json:"-"`
	Profile *Profile  `json:"profile,omitempty"`
}

// IsAuthenticated reports whether a real session is present.
func (a AuthenticatedIdentity) IsAuthenticated() bool {
	return !a.UserID.IsNil()
}

// RoleState holds the coarse role flags derived from backend role grants.
//
// The flags are independently derived and deliberately NOT mutually
// exclusive: an account holding several grants satisfies each corresponding
// check, granting the union of accesses. ManagerCompanyID is present iff
// IsManager; ParticipantID is present iff IsParticipant.
type RoleState struct {
	IsAdmin          bool              `json:"is_admin"`
	IsManager        bool              `json:"is_manager"`
	ManagerCompanyID *id.CompanyID     `json:"manager_company_id,omitempty"`
	IsParticipant    bool              `json:"is_participant"`
	ParticipantID    *id.ParticipantID `json:"participant_id,omitempty"`
}

// Satisfies reports whether the role state grants the given platform role.
// The facilitator role maps onto the admin flag.
func (r RoleState) Satisfies(role id.Role) bool {
	switch role {
	case id.RoleFacilitator:
		return r.IsAdmin
	case id.RoleCompanyManager:
		return r.IsManager
	case id.RoleParticipant:
		return r.IsParticipant
	default:
		return false
	}
}

// Credential is an account record held by the local auth client: the email
// login plus a bcrypt password hash. The hosted-BaaS deployment never sees
// this type.
type Credential struct {
	UserID       id.UserID
	Email        string
	FullName     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// AuthEvent labels a push notification from the auth collaborator.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// Snapshot is the immutable view of identity state handed to guards and
// subscribers. Loading is true while session restoration or role resolution
// is still in flight.
type Snapshot struct {
	Identity AuthenticatedIdentity `json:"identity"`
	Roles    RoleState             `json:"roles"`
	Loading  bool                  `json:"loading"`
}
