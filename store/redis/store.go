// Package redis implements checkpoint.Store on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/warden/checkpoint"
)

// compile-time interface check
var _ checkpoint.Store = (*Store)(nil)

// Store keeps resume tokens in Redis string keys.
type Store struct {
	rdb goredis.UniversalClient
}

// Connect parses a redis:// URL and returns a connected store.
func Connect(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("warden/redis: parse url: %w", err)
	}

	s := New(goredis.NewClient(opts))
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store over an existing client.
func New(rdb goredis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("warden/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Load returns the saved token for stream, or nil when none exists.
func (s *Store) Load(ctx context.Context, stream string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, checkpointKey(stream)).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("warden/redis: load checkpoint: %w", err)
	}
	return raw, nil
}

// Save stores token as stream's latest position. Tokens never expire.
func (s *Store) Save(ctx context.Context, stream string, token []byte) error {
	if err := s.rdb.Set(ctx, checkpointKey(stream), token, 0).Err(); err != nil {
		return fmt.Errorf("warden/redis: save checkpoint: %w", err)
	}
	return nil
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}
