// Package profile stores the presentational profile attached to accounts.
package profile

import (
	"context"
	"sync"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
	"wellgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded profile store for development and tests.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.UserID]models.Profile
}

// NewInMemory builds an empty in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[id.UserID]models.Profile)}
}

// FindByUserID returns a copy of the stored profile or sentinel.ErrNotFound.
func (s *InMemory) FindByUserID(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := p
	out.Certifications = append([]string(nil), p.Certifications...)
	return &out, nil
}

// Upsert creates or replaces the profile keyed by its UserID.
func (s *InMemory) Upsert(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *profile
	stored.Certifications = append([]string(nil), profile.Certifications...)
	s.profiles[profile.UserID] = stored
	return nil
}
