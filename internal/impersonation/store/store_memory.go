package store

import (
	"context"
	"sync"

	"wellgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded Store for tests and standalone development.
type InMemory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewInMemory builds an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value or sentinel.ErrNotFound.
func (s *InMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores a copy of value under key.
func (s *InMemory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *InMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
