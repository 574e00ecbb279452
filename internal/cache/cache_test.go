package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/resolve"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存读写与过期
func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	data, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), data)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, found, _ = c.Get(ctx, "short")
	assert.False(t, found)

	require.NoError(t, c.Delete(ctx, "k"))
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
	assert.NoError(t, c.Close())
}

// TestNullCache 测试空缓存总是未命中
func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewNullCache()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestNew 测试按驱动名创建缓存
func TestNew(t *testing.T) {
	c, err := cache.New(config.CacheConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	c, err = cache.New(config.CacheConfig{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, &cache.NullCache{}, c)

	_, err = cache.New(config.CacheConfig{Driver: "memcached"})
	assert.Error(t, err)
}

func resolvedFooter() *resolve.ResolvedContainer {
	return &resolve.ResolvedContainer{
		ID:      "footer-1",
		Kind:    instance.KindFooter,
		Name:    "Footer",
		Columns: 3,
		Buckets: []resolve.ResolvedBucket{{
			Position: "footer_bar",
			Instances: []resolve.ResolvedInstance{{
				ID:       "a",
				TypeTag:  instance.TagText,
				Props:    map[string]any{"content": "Hi"},
				Position: "footer_bar",
				Order:    1,
				Warnings: []resolve.Warning{{Code: resolve.WarnUnknownProperty, Message: "unknown", Key: "foo"}},
			}},
		}},
		ResolvedAt: time.Now().UTC(),
	}
}

// TestResolvedCache 测试解析结果缓存的读写与失效
func TestResolvedCache(t *testing.T) {
	ctx := context.Background()
	rc := cache.NewResolvedCache(cache.NewMemoryCache(), time.Minute)

	_, found := rc.Get(ctx, "footer-1")
	assert.False(t, found)

	require.NoError(t, rc.Set(ctx, resolvedFooter()))
	got, found := rc.Get(ctx, "footer-1")
	require.True(t, found)
	require.Len(t, got.Buckets, 1)
	assert.Equal(t, "Hi", got.Buckets[0].Instances[0].Props["content"])
	assert.Equal(t, resolve.WarnUnknownProperty, got.Buckets[0].Instances[0].Warnings[0].Code)

	require.NoError(t, rc.Invalidate(ctx, "footer-1"))
	_, found = rc.Get(ctx, "footer-1")
	assert.False(t, found)

	require.NoError(t, rc.Set(ctx, resolvedFooter()))
	require.NoError(t, rc.InvalidateAll(ctx))
	_, found = rc.Get(ctx, "footer-1")
	assert.False(t, found)
}

// TestResolvedCache_Corrupt 测试损坏的缓存数据按未命中处理并被删除
func TestResolvedCache_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	require.NoError(t, store.Set(ctx, "container:footer-1", []byte("{not json"), 0))

	rc := cache.NewResolvedCache(store, time.Minute)
	_, found := rc.Get(ctx, "footer-1")
	assert.False(t, found)

	_, found, err := store.Get(ctx, "container:footer-1")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestRedisCache 需要可用的 Redis,通过 APP_TEST_REDIS_ADDR 指定
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("APP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("APP_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	c := cache.NewRedisCacheWithClient(client, "reticstudio:test:")
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	data, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), data)

	require.NoError(t, c.Delete(ctx, "k"))
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Clear(ctx))
	_, found, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestNewRedisCache_Unreachable 测试 Redis 不可达时创建失败
func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := cache.NewRedisCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
