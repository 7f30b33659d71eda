package slotcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, 30*time.Second, "test-slots"), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	loc := time.FixedZone("UTC+2", 2*3600)
	slots := []time.Time{
		time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
		time.Date(2026, 3, 2, 9, 30, 0, 0, loc),
	}

	v, err := c.Version(ctx, "op-1")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, hit, err := c.Get(ctx, "op-1", v, "2026-03-02", model.RoleClient)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "op-1", v, "2026-03-02", model.RoleClient, slots))
	got, hit, err := c.Get(ctx, "op-1", v, "2026-03-02", model.RoleClient)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.True(t, got[1].Equal(slots[1]))

	_, hit, err = c.Get(ctx, "op-1", v, "2026-03-02", model.RoleOperator)
	require.NoError(t, err)
	assert.False(t, hit, "roles are cached separately")

	ttl := mr.TTL("test-slots:{op-1}:0:2026-03-02:client")
	assert.Equal(t, 30*time.Second, ttl)
}

func TestEmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	require.NoError(t, c.Set(ctx, "op-1", 0, "2026-03-03", model.RoleClient, nil))
	got, hit, err := c.Get(ctx, "op-1", 0, "2026-03-03", model.RoleClient)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, got)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	require.NoError(t, c.Set(ctx, "op-1", 0, "2026-03-02", model.RoleClient, []time.Time{time.Now()}))
	require.NoError(t, c.Invalidate(ctx, "op-1"))

	v, err := c.Version(ctx, "op-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	_, hit, err := c.Get(ctx, "op-1", v, "2026-03-02", model.RoleClient)
	require.NoError(t, err)
	assert.False(t, hit)

	other, err := c.Version(ctx, "op-2")
	require.NoError(t, err)
	assert.Zero(t, other)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("test-slots:{op-1}:0:2026-03-02:client"), "orphaned entries expire")
	require.NoError(t, c.Ping(ctx))
}
