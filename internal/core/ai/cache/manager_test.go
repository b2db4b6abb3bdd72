package cache

import (
	"context"
	"testing"
	"time"

	"meal-planner/internal/infrastructure/config"
	"meal-planner/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(maxSize int, ttl time.Duration) config.CacheConfig {
	return config.CacheConfig{Enabled: true, MaxSize: maxSize, TTL: ttl}
}

func TestManager_SetGet(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))
	m := NewManager(testConfig(10, time.Minute))
	defer m.Close()
	ctx := context.Background()

	_, err := m.Get(ctx, "ai", "k")
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "ai", "k", "v"))
	got, err := m.Get(ctx, "ai", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = m.Get(ctx, "weather", "k")
	assert.ErrorIs(t, err, common.ErrCacheMiss, "namespaces are isolated")

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(2), stats["misses"])
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(testConfig(10, time.Millisecond))
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "ai", "k", "v"))
	time.Sleep(5 * time.Millisecond)

	_, err := m.Get(ctx, "ai", "k")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManager_EvictsLeastUsed(t *testing.T) {
	m := NewManager(testConfig(2, time.Minute))
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "ai", "a", "1"))
	require.NoError(t, m.Set(ctx, "ai", "b", "2"))
	_, err := m.Get(ctx, "ai", "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "ai", "c", "3"))

	_, err = m.Get(ctx, "ai", "b")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	got, err := m.Get(ctx, "ai", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(config.CacheConfig{Enabled: false, MaxSize: 1, TTL: time.Minute})
	defer m.Close()

	assert.NoError(t, m.Set(context.Background(), "ai", "k", "v"))
	_, err := m.Get(context.Background(), "ai", "k")
	assert.ErrorIs(t, err, common.ErrCacheDisabled)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key("x"), 64)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))
	cfg := testConfig(10, time.Minute)
	cfg.RedisAddr = "127.0.0.1:1"

	store := New(context.Background(), cfg)
	defer store.Close()

	_, ok := store.(*CacheManager)
	assert.True(t, ok)
}
