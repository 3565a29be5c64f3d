package symbolcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "swapwatch:symbol:"

// RedisOptions configure the shared cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis shares the suppression window between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a Redis-backed cache.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisFromClient(client, opts.TTL)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Exists sets the key only when absent. A successful set is a miss.
func (r *Redis) Exists(ctx context.Context, symbol string) (bool, error) {
	created, err := r.client.SetNX(ctx, keyPrefix+normalize(symbol), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !created, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
