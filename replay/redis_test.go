package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cache, err := DialRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestDialRedis(t *testing.T) {
	t.Run("missing address", func(t *testing.T) {
		_, err := DialRedis(context.Background(), RedisConfig{})
		assert.ErrorIs(t, err, ErrNoRedisAddr)
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := DialRedis(context.Background(), RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond})
		assert.Error(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		cache, _ := setupRedis(t)
		assert.NoError(t, cache.Ping(context.Background()))
	})
}

func TestRedisRemember(t *testing.T) {
	ctx := context.Background()

	t.Run("set nx semantics with prefix and ttl", func(t *testing.T) {
		cache, mr := setupRedis(t)

		fresh, err := cache.Remember(ctx, "k1:sig", 10*time.Second)
		require.NoError(t, err)
		assert.True(t, fresh)

		assert.True(t, mr.Exists(DefaultRedisPrefix+"k1:sig"))
		assert.Equal(t, 10*time.Second, mr.TTL(DefaultRedisPrefix+"k1:sig"))

		fresh, err = cache.Remember(ctx, "k1:sig", 10*time.Second)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("entry expires", func(t *testing.T) {
		cache, mr := setupRedis(t)

		_, err := cache.Remember(ctx, "k1:sig", 10*time.Second)
		require.NoError(t, err)

		mr.FastForward(11 * time.Second)

		fresh, err := cache.Remember(ctx, "k1:sig", 10*time.Second)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("custom prefix", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		cache := NewRedis(client, "gw1:")

		_, err := cache.Remember(ctx, "k1:sig", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("gw1:k1:sig"))
	})

	t.Run("server failure is returned", func(t *testing.T) {
		cache, mr := setupRedis(t)
		mr.SetError("LOADING")

		_, err := cache.Remember(ctx, "k1:sig", time.Minute)
		assert.Error(t, err)
	})
}
