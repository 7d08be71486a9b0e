// Package redisstore implements the device cache on Redis, one hash per device.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"architect/internal/localstore"
)

const keyPrefix = "architect:device:"

// Store is a localstore.Store backed by Redis hashes.
type Store struct {
	client redis.UniversalClient
}

var _ localstore.Store = (*Store)(nil)

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis.
func New(opts Options) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}))
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, device, key string) ([]byte, error) {
	value, err := s.client.HGet(ctx, hashKey(device), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, localstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, device, key string, value []byte) error {
	if err := s.client.HSet(ctx, hashKey(device), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, device, key string) error {
	return s.Clear(ctx, device, key)
}

func (s *Store) Clear(ctx context.Context, device string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, hashKey(device), keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func hashKey(device string) string {
	return keyPrefix + device
}
