package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPendingStore is a shared PendingStore for deployments running more
// than one bot process behind the same redirect URL. GETDEL gives the same
// single-consumption guarantee the in-memory store provides under its lock.
type RedisPendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPendingStore connects to Redis and verifies connectivity.
func NewRedisPendingStore(redisURL string, ttl time.Duration) (*RedisPendingStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &RedisPendingStore{client: client, ttl: ttl}, nil
}

func stateKey(state string) string     { return "oauth:pending:state:" + state }
func userKeyKey(userKey string) string { return "oauth:pending:user:" + userKey }

// Put records state -> userKey with TTL, displacing any earlier pending
// state for the same user.
func (s *RedisPendingStore) Put(ctx context.Context, state, userKey string) error {
	if old, err := s.client.Get(ctx, userKeyKey(userKey)).Result(); err == nil && old != "" {
		if err := s.client.Del(ctx, stateKey(old)).Err(); err != nil {
			return err
		}
	} else if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, stateKey(state), userKey, s.ttl)
	pipe.Set(ctx, userKeyKey(userKey), state, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Consume atomically resolves and removes state via GETDEL.
func (s *RedisPendingStore) Consume(ctx context.Context, state string) (string, bool, error) {
	userKey, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// Best effort: drop the reverse mapping if it still points here.
	if current, err := s.client.Get(ctx, userKeyKey(userKey)).Result(); err == nil && current == state {
		_ = s.client.Del(ctx, userKeyKey(userKey)).Err()
	}
	return userKey, true, nil
}

// Close closes the Redis connection.
func (s *RedisPendingStore) Close() error {
	return s.client.Close()
}
