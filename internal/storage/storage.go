package storage

import (
	"context"

	"github.com/mobix/storefront/pkg/logger"
)

// KV is durable key/value storage. A missing key reads as (nil, nil).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Store is the best-effort façade the cart and catalog code talk to.
// Storage is a cache, not a source of truth: every failure is logged and
// swallowed so a broken or full backend can never block a mutation.
type Store struct {
	kv KV
}

// NewStore wraps a KV backend in the best-effort façade
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Get returns the stored value, or nil when the key is absent or the
// backend failed.
func (s *Store) Get(ctx context.Context, key string) []byte {
	value, err := s.kv.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("storage read failed")
		return nil
	}
	return value
}

// Set writes the value, logging and discarding any backend error.
func (s *Store) Set(ctx context.Context, key string, value []byte) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("storage write failed")
	}
}

// Remove deletes the key, logging and discarding any backend error.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.kv.Remove(ctx, key); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("storage remove failed")
	}
}
