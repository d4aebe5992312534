package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medbot/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient creates the redis client from app config and pings it.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(inner *redis.Client) *Client {
	return &Client{inner: inner}
}

// incrWindowScript increments KEYS[1] and gives it a TTL of ARGV[1] ms when it
// has none, in one atomic step.
var incrWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// IncrWindow increments key and sets its TTL if it has none. It returns the
// counter value after the increment.
func (c *Client) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	return incrWindowScript.Run(ctx, c.inner, []string{key}, ttl.Milliseconds()).Int64()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Ping(ctx).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
