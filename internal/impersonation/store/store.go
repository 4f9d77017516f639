// Package store provides the key-value persistence behind the impersonation
// overlay. The record must survive a reload/deep-link, so it lives outside
// process memory; Redis backs deployments, InMemory backs tests and
// standalone development.
package store

import "context"

// Store is a synchronous key-value surface. Get returns
// sentinel.ErrNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
