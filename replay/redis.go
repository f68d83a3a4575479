package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces replay keys in a shared Redis database.
const DefaultRedisPrefix = "sigauth:replay:"

// ErrNoRedisAddr is returned by DialRedis when no address is configured.
var ErrNoRedisAddr = errors.New("replay: redis address must not be empty")

// RedisConfig configures DialRedis.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Prefix is prepended to every key. Defaults to DefaultRedisPrefix.
	Prefix string

	// DialTimeout bounds the initial ping. Defaults to five seconds.
	DialTimeout time.Duration
}

// Redis is a replay cache shared through Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to Redis and verifies the connection with a ping.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, ErrNoRedisAddr
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("replay: ping redis %s: %w", cfg.Addr, err)
	}

	return NewRedis(client, cfg.Prefix), nil
}

// Remember stores key for ttl with SET NX and reports whether it was absent.
func (r *Redis) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}

	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay: redis setnx: %w", err)
	}

	return ok, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
