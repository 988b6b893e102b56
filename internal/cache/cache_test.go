package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	c.Set(ctx, 1, "<p>one</p>")
	c.Set(ctx, 2, "<p>two</p>")
	_, ok := c.Get(ctx, 1) // 1 becomes most recent
	require.True(t, ok)

	c.Set(ctx, 3, "<p>three</p>")
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, 2)
	assert.False(t, ok, "least recently used entry is evicted")

	html, ok := c.Get(ctx, 3)
	require.True(t, ok)
	assert.Equal(t, "<p>three</p>", html)

	c.Flush(ctx)
	assert.Zero(t, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU(4, time.Second)
	c.now = func() time.Time { return now }

	c.Set(ctx, 7, "x")
	_, ok := c.Get(ctx, 7)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, 7)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rc := OpenRedis(addr, os.Getenv("REDIS_PASS"), 0)
	t.Cleanup(func() { rc.Close() })
	c := NewRedis(rc, time.Minute, nil)

	c.Set(ctx, 42, "<b>mill</b>")
	html, ok := c.Get(ctx, 42)
	require.True(t, ok)
	assert.Equal(t, "<b>mill</b>", html)

	c.Flush(ctx)
	_, ok = c.Get(ctx, 42)
	assert.False(t, ok)
}

func TestOpenRedisEmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}
