package cinder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/cinder/config"
)

func newTestCinder(t *testing.T, opts ...Option) *Cinder {
	t.Helper()

	opts = append([]Option{
		WithCacheDirectory(t.TempDir()),
		WithAutoPersist(false),
	}, opts...)

	c, err := New(context.Background(), opts...)
	require.NoError(t, err)
	return c
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCinder(t, WithCacheSize(8))
	defer func() {
		require.NoError(t, c.Shutdown(ctx))
	}()

	c.SetState(ctx, "agent_1", map[string]any{"status": "active"})

	state, ok := c.GetState(ctx, "agent_1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "active"}, state)

	_, ok = c.GetState(ctx, "agent_2")
	assert.False(t, ok)

	stats := c.CacheStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, 1, stats.CacheSize)
	assert.Equal(t, 8, stats.MaxSize)
}

func TestDisabledFacadeIsTransparent(t *testing.T) {
	ctx := context.Background()
	c := newTestCinder(t, WithCaching(false))

	c.SetState(ctx, "k", "v")
	_, ok := c.GetState(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.DeleteState(ctx, "k"))
	assert.NoError(t, c.ClearCache(ctx))
	assert.NoError(t, c.Persist(ctx))
	assert.NoError(t, c.Shutdown(ctx))

	assert.Equal(t, Stats{Enabled: false}, c.CacheStats())
}

func TestUnusableDirectoryDisablesCaching(t *testing.T) {
	ctx := context.Background()

	// A regular file where the cache directory should be makes the store
	// construction fail; the facade must degrade, not crash.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	c, err := New(ctx, WithCacheDirectory(blocker))
	require.NoError(t, err)

	c.SetState(ctx, "k", "v")
	_, ok := c.GetState(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.CacheStats().Enabled)
}

func TestPersistAndRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := New(ctx, WithCacheDirectory(dir), WithAutoPersist(false))
	require.NoError(t, err)
	c.SetState(ctx, "k", "v")
	require.NoError(t, c.Persist(ctx))
	require.NoError(t, c.Shutdown(ctx))

	c2, err := New(ctx, WithCacheDirectory(dir), WithAutoPersist(false))
	require.NoError(t, err)
	state, ok := c2.GetState(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", state)
}

func TestDeleteState(t *testing.T) {
	ctx := context.Background()
	c := newTestCinder(t)

	c.SetState(ctx, "k", "v")
	assert.True(t, c.DeleteState(ctx, "k"))
	assert.False(t, c.DeleteState(ctx, "k"))
}

func TestClearCacheResetsStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCinder(t)

	c.SetState(ctx, "k", "v")
	_, _ = c.GetState(ctx, "k")
	require.NoError(t, c.ClearCache(ctx))

	stats := c.CacheStats()
	assert.True(t, stats.Enabled)
	assert.Zero(t, stats.TotalRequests)
	assert.Zero(t, stats.CacheSize)
	assert.Zero(t, stats.HitRate)
}

func TestOptionValidation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, WithCacheSize(0))
	assert.ErrorIs(t, err, config.ErrCacheSizeZero)

	_, err = New(ctx, WithPersistInterval(0))
	assert.ErrorIs(t, err, config.ErrPersistIntervalLow)

	_, err = New(ctx, WithSerializer("xml"))
	assert.Error(t, err)
}

func TestNewFromConfigAppliesDefaults(t *testing.T) {
	ctx := context.Background()

	// A sparse config, as it would arrive from an external config file.
	cfg := &config.Config{
		Performance: config.PerformanceConfig{EnableCaching: true},
		CacheDir:    t.TempDir(),
		AutoPersist: false,
	}

	c := NewFromConfig(ctx, cfg)
	defer func() {
		require.NoError(t, c.Shutdown(ctx))
	}()

	c.SetState(ctx, "k", "v")
	state, ok := c.GetState(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", state)
	assert.Equal(t, 256, c.CacheStats().MaxSize)
}

func TestAutoPersistLoopFlushes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := New(ctx,
		WithCacheDirectory(dir),
		WithPersistInterval(50*time.Millisecond),
	)
	require.NoError(t, err)

	c.SetState(ctx, "k", "v")

	assert.Eventually(t, func() bool {
		files, globErr := filepath.Glob(filepath.Join(dir, "*.cache.json"))
		return globErr == nil && len(files) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, c.Shutdown(ctx))
}
