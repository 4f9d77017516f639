// Package credential stores account records for the local auth client.
package credential

import (
	"context"
	"strings"
	"sync"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
	"wellgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded credential store. Email lookup is
// case-insensitive.
type InMemory struct {
	mu      sync.RWMutex
	byEmail map[string]models.Credential
	byID    map[id.UserID]string
}

// NewInMemory builds an empty in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{
		byEmail: make(map[string]models.Credential),
		byID:    make(map[id.UserID]string),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create stores a new credential. Returns sentinel.ErrConflict when the
// email is already registered.
func (s *InMemory) Create(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(cred.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	s.byEmail[key] = *cred
	s.byID[cred.UserID] = key
	return nil
}

// FindByEmail returns the credential or sentinel.ErrNotFound.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cred
	return &out, nil
}

// FindByUserID returns the credential or sentinel.ErrNotFound.
func (s *InMemory) FindByUserID(_ context.Context, userID id.UserID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cred := s.byEmail[key]
	out := cred
	return &out, nil
}

// UpdatePassword replaces the stored hash. Returns sentinel.ErrNotFound for
// unknown accounts.
func (s *InMemory) UpdatePassword(_ context.Context, userID id.UserID, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cred := s.byEmail[key]
	cred.PasswordHash = hash
	s.byEmail[key] = cred
	return nil
}
