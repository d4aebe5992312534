package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medbot/internal/redis"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter caps how many requests one client key may make per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Unlimited allows everything. Used when rate_limit.requests is not positive.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1}, nil
}

type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedis returns a fixed-window limiter whose counters live in redis, so every
// replica shares the same budget.
func NewRedis(client *redis.Client, limit int, window time.Duration) Limiter {
	if limit <= 0 {
		return Unlimited{}
	}
	return &redisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	windowEnd := time.Unix(0, (slot+1)*int64(l.window))
	redisKey := fmt.Sprintf("medbot:ratelimit:%s:%d", key, slot)

	count, err := l.client.IncrWindow(ctx, redisKey, l.window)
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("rate limit counter: %w", err)
	}
	if count > int64(l.limit) {
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
}

type memoryLimiter struct {
	limit     int
	window    time.Duration
	now       func() time.Time
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// NewMemory returns a sliding-log limiter local to this process.
func NewMemory(limit int, window time.Duration) Limiter {
	if limit <= 0 {
		return Unlimited{}
	}
	return &memoryLimiter{limit: limit, window: window, now: time.Now, hits: make(map[string][]time.Time)}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}
	queue := trim(l.hits[key], cutoff)
	if len(queue) == 0 {
		queue = nil
	}
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return Decision{Allowed: false, RetryAfter: queue[0].Add(l.window).Sub(now)}, nil
	}
	queue = append(queue, now)
	l.hits[key] = queue
	return Decision{Allowed: true, Remaining: l.limit - len(queue)}, nil
}

// sweep drops every key whose newest hit is older than cutoff. Allow calls it
// at most once per window.
func (l *memoryLimiter) sweep(cutoff time.Time) {
	for key, queue := range l.hits {
		if len(queue) == 0 || !queue[len(queue)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// trim drops the leading hits that fell out of the window.
func trim(queue []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	return queue[idx:]
}
