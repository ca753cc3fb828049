// Package throttle limits how often a key (an email and client address
// pair) may attempt to log in within a fixed window.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Limiter counts attempts per key.
type Limiter interface {
	// Allow records an attempt and reports whether it is within the limit.
	// When it is not, the duration until the window resets is returned.
	Allow(ctx context.Context, key string) (bool, time.Duration)
	// Reset forgets all attempts for key.
	Reset(ctx context.Context, key string)
}

// RedisLimiter shares counters between instances through Redis. Redis
// failures let the attempt through.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *logrus.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *logrus.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, logger: logger}
}

func (l *RedisLimiter) key(key string) string {
	return "cafelist:login:" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	k := l.key(key)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		l.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		return true, l.window
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			l.logger.WithError(err).Warn("Failed to set rate limit window")
		}
	}

	if count > int64(l.limit) {
		ttl, err := l.client.TTL(ctx, k).Result()
		if err != nil || ttl <= 0 {
			ttl = l.window
		}
		return false, ttl
	}
	return true, l.window
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		l.logger.WithError(err).Warn("Failed to reset rate limit")
	}
}

// LocalLimiter keeps counters in process memory.
type LocalLimiter struct {
	mu        sync.Mutex
	states    map[string]*localState
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type localState struct {
	count   int
	resetAt time.Time
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		states: make(map[string]*localState),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	state, ok := l.states[key]
	if !ok || now.After(state.resetAt) {
		state = &localState{resetAt: now.Add(l.window)}
		l.states[key] = state
	}

	if state.count >= l.limit {
		retryAfter := state.resetAt.Sub(now)
		if retryAfter <= 0 {
			retryAfter = l.window
		}
		return false, retryAfter
	}

	state.count++
	return true, l.window
}

// sweep drops expired counters, at most once per window. Callers hold mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, state := range l.states {
		if now.After(state.resetAt) {
			delete(l.states, key)
		}
	}
}

func (l *LocalLimiter) Reset(_ context.Context, key string) {
	l.mu.Lock()
	delete(l.states, key)
	l.mu.Unlock()
}
