package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrIssuanceLimited indicates the key has exhausted its send quota for
	// the current window.
	ErrIssuanceLimited = errors.New("issuance rate limited")
	// ErrLimiterUnavailable indicates the limiter backend is unreachable.
	ErrLimiterUnavailable = errors.New("issuance limiter unavailable")
)

// IssuanceConfig bounds code sends per (identity, purpose) key.
type IssuanceConfig struct {
	MaxPerWindow int
	Window       time.Duration
}

// IssuanceLimiter answers whether a key may be sent another code right now.
// Allow consumes quota when it permits the send.
type IssuanceLimiter interface {
	Allow(ctx context.Context, identity, purpose string) error
}

// RedisIssuanceLimiter enforces a fixed window with an INCR+EXPIRE counter
// per (identity, purpose) key.
type RedisIssuanceLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config IssuanceConfig
}

// NewRedisIssuanceLimiter creates a Redis-backed issuance limiter under the
// given key prefix.
func NewRedisIssuanceLimiter(redisClient redis.UniversalClient, prefix string, cfg IssuanceConfig) *RedisIssuanceLimiter {
	if prefix == "" {
		prefix = "ogi"
	}
	return &RedisIssuanceLimiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *RedisIssuanceLimiter) key(identity, purpose string) string {
	return l.prefix + ":" + purpose + ":" + identity
}

func (l *RedisIssuanceLimiter) Allow(ctx context.Context, identity, purpose string) error {
	if l == nil || l.config.MaxPerWindow <= 0 {
		return nil
	}

	key := l.key(identity, purpose)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.MaxPerWindow) {
		return ErrIssuanceLimited
	}
	return nil
}
