// Package domain holds shared domain primitives: typed identifiers and the
// role enumeration. Typed IDs make cross-entity assignment a compile error;
// Parse* constructors enforce validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "wellgate/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a CompanyID can never be passed
// where a UserID is expected.
type (
	// UserID identifies an authenticated account.
	UserID uuid.UUID

	// CompanyID identifies a client company managed on the platform.
	CompanyID uuid.UUID

	// ParticipantID identifies a participant record within a company.
	ParticipantID uuid.UUID

	// SessionID identifies an authentication session.
	SessionID uuid.UUID
)

// NewUserID returns a freshly generated UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewCompanyID returns a freshly generated CompanyID.
func NewCompanyID() CompanyID { return CompanyID(uuid.New()) }

// NewParticipantID returns a freshly generated ParticipantID.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

// NewSessionID returns a freshly generated SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseCompanyID validates and returns a CompanyID.
func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s)
	return CompanyID(u), err
}

// ParseParticipantID validates and returns a ParticipantID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s)
	return ParticipantID(u), err
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id CompanyID) String() string     { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshalling delegates to uuid.UUID so the IDs serialize as canonical
// UUID strings in JSON bodies and map keys.
func (id UserID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id CompanyID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ParticipantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

func (id *CompanyID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

func (id *ParticipantID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

func (id *SessionID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}
