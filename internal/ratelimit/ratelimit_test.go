package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	m := NewMemory(120, time.Minute)
	now := time.Unix(1_699_999_990, 0) // 10s into a minute window
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		d, err := m.Allow(ctx, "key")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 120-i-1, d.Remaining)
	}
	d, err := m.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 120, d.Limit)
	assert.Equal(t, 50*time.Second, d.RetryAfter, "retry at the end of the window")

	other, _ := m.Allow(ctx, "other")
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(50 * time.Second)
	d, _ = m.Allow(ctx, "key")
	assert.True(t, d.Allowed, "new window resets the count")
	assert.Equal(t, 119, d.Remaining)
}

func TestMemoryCleanup(t *testing.T) {
	m := NewMemory(60, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	_, _ = m.Allow(context.Background(), "a")
	now = now.Add(time.Minute)
	_, _ = m.Allow(context.Background(), "b")
	m.Cleanup()
	assert.Equal(t, 1, m.Size())
}

func TestRedisWindowKey(t *testing.T) {
	r := NewRedis(nil, 10, time.Minute)
	key, start := r.WindowKey("k1", time.Unix(125, 0))
	assert.Equal(t, "gestly:ratelimit:k1:120", key)
	assert.Equal(t, int64(120), start.Unix())
}

func TestRedisFixedWindow(t *testing.T) {
	url := os.Getenv("GESTLY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GESTLY_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	r := NewRedis(client, 2, time.Minute)
	r.prefix = "gestly:test:" + time.Now().Format("150405.000000") + ":"
	for i := 0; i < 2; i++ {
		d, err := r.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := r.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.RetryAfter > 0)
}
