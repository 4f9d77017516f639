package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors without
// depending on storage internals.
//
// These represent factual states about resources:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a uniqueness or versioning constraint was violated
//   - ErrExpired: token or session is past its lifetime
//   - ErrUnavailable: backing resource temporarily unreachable
//
// Validation failures are not sentinels; use pkg/domain-errors for those.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
