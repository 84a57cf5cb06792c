package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimiter enforces a fixed-window quota per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type windowLimiter struct {
	redis  *redis.Client
	memory *gocache.Cache
	mu     sync.Mutex
	prefix string
	limit  int
	window time.Duration
	logger zerolog.Logger
}

// NewRateLimiter builds a limiter that counts in Redis when available and
// falls back to an in-process cache otherwise.
func NewRateLimiter(redisClient *redis.Client, prefix string, limit int, window time.Duration, logger zerolog.Logger) RateLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &windowLimiter{
		redis:  redisClient,
		memory: gocache.New(window, 2*window),
		prefix: prefix,
		limit:  limit,
		window: window,
		logger: logger.With().Str("component", "rate_limiter").Logger(),
	}
}

func (l *windowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	key = fmt.Sprintf("%s:%s", l.prefix, strings.ToLower(strings.TrimSpace(key)))

	if l.redis != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed, nil
		}
		l.logger.Warn().Err(err).Msg("redis rate limit unavailable; using in-process counter")
	}

	return l.allowMemory(key), nil
}

func (l *windowLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	} else {
		ttl, err := l.redis.PTTL(ctx, key).Result()
		if err != nil {
			return false, err
		}
		if ttl < 0 {
			if err := l.redis.PExpire(ctx, key, l.window).Err(); err != nil {
				return false, err
			}
		}
	}
	return count <= int64(l.limit), nil
}

func (l *windowLimiter) allowMemory(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.memory.Add(key, 1, l.window); err == nil {
		return true
	}

	count, err := l.memory.IncrementInt(key, 1)
	if err != nil {
		l.memory.Set(key, 1, l.window)
		return true
	}
	return count <= l.limit
}
