package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/redis"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*redisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	l, ok := NewRedis(client, limit, window).(*redisLimiter)
	require.True(t, ok)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.now = clock.now
	return l, mr, clock
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	l, _, clock := newRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.advance(time.Minute)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterSetsTTL(t *testing.T) {
	l, mr, clock := newRedisLimiter(t, 5, time.Minute)
	_, err := l.Allow(context.Background(), "client")
	require.NoError(t, err)

	slot := clock.now().UnixNano() / int64(time.Minute)
	key := "medbot:ratelimit:client:" + strconv.FormatInt(slot, 10)
	require.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	l, mr, _ := newRedisLimiter(t, 1, time.Minute)
	mr.Close()

	d, err := l.Allow(context.Background(), "client")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	l, ok := NewMemory(2, time.Minute).(*memoryLimiter)
	require.True(t, ok)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.now = clock.now
	ctx := context.Background()

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	clock.advance(30 * time.Second)
	d, _ = l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	clock.advance(31 * time.Second)
	d, _ = l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestMemoryLimiterForgetsIdleKeys(t *testing.T) {
	l, ok := NewMemory(3, time.Minute).(*memoryLimiter)
	require.True(t, ok)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.now = clock.now
	ctx := context.Background()

	for i := 0; i < 10_000; i++ {
		_, err := l.Allow(ctx, "10.1."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256))
		require.NoError(t, err)
	}
	assert.Len(t, l.hits, 10_000)

	clock.advance(time.Hour)
	d, err := l.Allow(ctx, "10.9.9.9")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Len(t, l.hits, 1)
}

func TestMemoryLimiterSweepKeepsActiveKeys(t *testing.T) {
	l, ok := NewMemory(1, time.Minute).(*memoryLimiter)
	require.True(t, ok)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.now = clock.now
	ctx := context.Background()

	_, _ = l.Allow(ctx, "idle")
	clock.advance(45 * time.Second)
	_, _ = l.Allow(ctx, "busy")
	clock.advance(20 * time.Second)

	// Sweep runs here: "idle" is past its window, "busy" is not.
	d, _ := l.Allow(ctx, "busy")
	assert.False(t, d.Allowed)
	assert.NotContains(t, l.hits, "idle")
	assert.Contains(t, l.hits, "busy")
}

func TestNonPositiveLimitDisables(t *testing.T) {
	assert.IsType(t, Unlimited{}, NewMemory(0, time.Minute))
	assert.IsType(t, Unlimited{}, NewRedis(nil, -1, time.Minute))

	d, err := Unlimited{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
