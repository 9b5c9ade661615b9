package payment

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayStore remembers webhook bodies that were already accepted.
type ReplayStore interface {
	// Claim records key and reports whether it was seen for the first time.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a failed delivery can be retried.
	Release(ctx context.Context, key string) error
}

// RedisReplayStore keeps replay keys in Redis with SETNX semantics.
type RedisReplayStore struct {
	Client *redis.Client
}

func (s RedisReplayStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, key, "1", ttl).Result()
}

func (s RedisReplayStore) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}
