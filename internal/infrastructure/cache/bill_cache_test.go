package cache

import (
	"context"
	"testing"
	"time"

	"schoolbills/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestBillListCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewBillListCache(client, time.Minute)

	_, hit, err := c.Get(ctx, "2025/2026")
	require.NoError(t, err)
	assert.False(t, hit)

	bills := []*model.Bill{{ID: "64b7f0c2a1b2c3d4e5f60718", Serial: "001", StudentName: "Ada", AmountPaid: "500"}}
	require.NoError(t, c.Set(ctx, "2025/2026", bills))
	assert.Equal(t, time.Minute, mr.TTL(listKeyPrefix+"2025/2026"))

	got, hit, err := c.Get(ctx, "2025/2026")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].StudentName)
	assert.Equal(t, "500", got[0].AmountPaid)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.Get(ctx, "2025/2026")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBillListCacheInvalidateDropsYearAndAll(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewBillListCache(client, time.Minute)

	for _, year := range []string{"", "2024/2025", "2025/2026"} {
		require.NoError(t, c.Set(ctx, year, []*model.Bill{{StudentName: year}}))
	}

	require.NoError(t, c.Invalidate(ctx, "2025/2026", ""))

	assert.False(t, mr.Exists(listKeyAll))
	assert.False(t, mr.Exists(listKeyPrefix+"2025/2026"))
	assert.True(t, mr.Exists(listKeyPrefix+"2024/2025"))
}

func TestBillListCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewBillListCache(client, time.Minute)

	require.NoError(t, mr.Set(listKeyAll, "not json"))
	_, hit, err := c.Get(ctx, "")
	assert.Error(t, err)
	assert.False(t, hit)
}
