package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wellgate/pkg/platform/sentinel"
)

// Overlay records outlive any single admin session but must not linger
// forever if an admin never presses stop; a day covers the longest session
// TTL the platform issues.
const redisTTL = 24 * time.Hour

// Redis persists overlay records in Redis so a reload, or a request landing
// on another instance, still observes the overlay.
type Redis struct {
	client redis.Cmdable
}

// NewRedis builds a Redis-backed store.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Get returns the value or sentinel.ErrNotFound.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with the overlay TTL.
func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, redisTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
