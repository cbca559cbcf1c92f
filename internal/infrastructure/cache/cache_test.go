package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryApproverCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemoryApproverCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "Supervisor:4", 17, 60*time.Second))

	id, ok, err := c.Get(ctx, "Supervisor:4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	now = now.Add(59 * time.Second)
	_, ok, _ = c.Get(ctx, "Supervisor:4")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "Supervisor:4")
	assert.False(t, ok, "entry must expire at ttl")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryApproverCache_StoresNegativeResult(t *testing.T) {
	c := NewMemoryApproverCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "Reviewer:*", 0, time.Minute))

	id, ok, err := c.Get(ctx, "Reviewer:*")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, id)

	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRedisApproverCache_FormatKey(t *testing.T) {
	c := NewRedisApproverCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "staff-portal")
	assert.Equal(t, "staff-portal:approver:Supervisor:4", c.formatKey("Supervisor:4"))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
