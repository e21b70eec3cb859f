package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total int    `json:"total"`
	Name  string `json:"name"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, time.Minute), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, InfrastructureBreakdownKey, payload{Total: 41302, Name: "lyon"}, 0))

	var got payload
	require.True(t, c.GetJSON(ctx, InfrastructureBreakdownKey, &got))
	assert.Equal(t, 41302, got.Total)
	assert.Equal(t, "lyon", got.Name)

	assert.Equal(t, time.Minute, mr.TTL(InfrastructureBreakdownKey))
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var got payload
	assert.False(t, c.GetJSON(context.Background(), "ecolyon:absent", &got))
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, StationsKey, payload{Total: 1}, 10*time.Second))
	mr.FastForward(11 * time.Second)

	var got payload
	assert.False(t, c.GetJSON(ctx, StationsKey, &got))
}

func TestCache_UndecodableIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(StationsKey, "{not json"))

	var got payload
	assert.False(t, c.GetJSON(context.Background(), StationsKey, &got))
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := InfrastructureTypeKey("bancs")

	require.NoError(t, c.SetJSON(ctx, key, payload{Total: 3417}, 0))
	require.NoError(t, c.Delete(ctx, key))

	var got payload
	assert.False(t, c.GetJSON(ctx, key, &got))
}

func TestCache_StoreDownIsMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	defer c.Close()
	mr.Close()

	var got payload
	assert.False(t, c.GetJSON(context.Background(), StationsKey, &got))
	assert.Error(t, c.Ping(context.Background()))
}

func TestCache_NilIsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var got payload
	assert.False(t, c.GetJSON(ctx, StationsKey, &got))
	assert.NoError(t, c.SetJSON(ctx, StationsKey, payload{}, 0))
	assert.NoError(t, c.Delete(ctx, StationsKey))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
	assert.Zero(t, c.TTL())
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(context.Background(), Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.TTL())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestInfrastructureTypeKey(t *testing.T) {
	assert.Equal(t, "ecolyon:infrastructure:type:bancs", InfrastructureTypeKey("bancs"))
	assert.NotEqual(t, InfrastructureBreakdownKey, InfrastructureTypeKey("breakdown"))
}
