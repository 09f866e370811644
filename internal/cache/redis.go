// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github-portal/internal/common/config"
)

// redisRecord is the wire form of one cache entry. The stored-at timestamp
// travels with the value because entry age, not Redis TTL, drives freshness.
type redisRecord struct {
	Value    json.RawMessage `json:"v"`
	StoredAt int64           `json:"stored_at"` // unix milliseconds
}

// RedisStore is a Store backed by Redis. The TTL only bounds how long stale
// entries remain servable under background refresh; it must comfortably
// exceed the freshness window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// NewRedisClient creates the underlying Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Undecodable entries are treated as absent so the caller refetches.
		return nil, 0, false, nil
	}

	age := s.now().Sub(time.UnixMilli(rec.StoredAt))
	return rec.Value, age, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, storedAt time.Time) error {
	rec := redisRecord{
		Value:    json.RawMessage(value),
		StoredAt: storedAt.UnixMilli(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache record %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
