package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is a counter whose key expires after a window. The rate limiter counts
// requests per API key with it.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

var (
	_ Counter     = (*RedisCache)(nil)
	_ ResultStore = (*RedisCache)(nil)
)

// DefaultResultTTL matches the retention window of the task result store.
const DefaultResultTTL = 7 * 24 * time.Hour

// RedisCache implements Counter and ResultStore using go-redis/v9.
type RedisCache struct {
	client    *redis.Client
	resultTTL time.Duration
}

// Option configures a RedisCache.
type Option func(*RedisCache)

// WithResultTTL sets the expiry applied on every task record write.
func WithResultTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.resultTTL = ttl
		}
	}
}

// NewClient parses a redis:// URL into a client. Callers own the client.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string, opts ...Option) (*RedisCache, error) {
	client, err := NewClient(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisCacheFromClient(client, opts...), nil
}

// NewRedisCacheFromClient wraps an existing client, so the cache and the broadcast
// channel can share one connection pool.
func NewRedisCacheFromClient(client *redis.Client, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, resultTTL: DefaultResultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client exposes the underlying client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close releases the client's connections.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// IncrWithExpiry increments key and (re)sets its expiry in one transaction.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
