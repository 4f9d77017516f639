// Package roles stores role grants and the role-scoped id lookups behind
// role resolution.
package roles

import (
	"context"
	"sync"

	id "wellgate/pkg/domain"
)

// InMemory is a mutex-guarded role store for development and tests.
type InMemory struct {
	mu           sync.RWMutex
	grants       map[id.UserID][]string
	companies    map[id.UserID]id.CompanyID
	participants map[id.UserID]id.ParticipantID
}

// NewInMemory builds an empty in-memory role store.
func NewInMemory() *InMemory {
	return &InMemory{
		grants:       make(map[id.UserID][]string),
		companies:    make(map[id.UserID]id.CompanyID),
		participants: make(map[id.UserID]id.ParticipantID),
	}
}

// Grant appends a role-name grant for the user. Duplicate grants are kept;
// resolution is idempotent over them.
func (s *InMemory) Grant(userID id.UserID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[userID] = append(s.grants[userID], role)
}

// SetManagedCompany binds the single company the user manages.
func (s *InMemory) SetManagedCompany(userID id.UserID, companyID id.CompanyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[userID] = companyID
}

// SetParticipant binds the participant record for the user.
func (s *InMemory) SetParticipant(userID id.UserID, participantID id.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[userID] = participantID
}

// RolesByUserID returns the raw grants for the user; empty when none.
func (s *InMemory) RolesByUserID(_ context.Context, userID id.UserID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grants := s.grants[userID]
	out := make([]string, len(grants))
	copy(out, grants)
	return out, nil
}

// CompanyIDByManager returns the managed company id, or nil when the user
// manages none.
func (s *InMemory) CompanyIDByManager(_ context.Context, userID id.UserID) (*id.CompanyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	companyID, ok := s.companies[userID]
	if !ok {
		return nil, nil
	}
	return &companyID, nil
}

// ParticipantIDByUser returns the participant record id, or nil when the
// user has none.
func (s *InMemory) ParticipantIDByUser(_ context.Context, userID id.UserID) (*id.ParticipantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participantID, ok := s.participants[userID]
	if !ok {
		return nil, nil
	}
	return &participantID, nil
}
