package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasury-tracker/internal/types"
)

func newTestPriceCache(t *testing.T, ttl time.Duration) (*PriceCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPriceCache(NewRedisCacheFromClient(client), ttl), mr
}

func TestPriceCache_PutAndGet(t *testing.T) {
	cache, _ := newTestPriceCache(t, time.Minute)
	ctx := context.Background()

	rates := map[string]float64{"usd": 65000, "eur": 60000}
	cache.Put(ctx, types.AssetBitcoin, []string{"usd", "eur"}, rates)

	got, ok := cache.Get(ctx, types.AssetBitcoin, []string{"usd", "eur"})
	require.True(t, ok)
	assert.Equal(t, rates, got)
}

func TestPriceCache_CurrencyOrderDoesNotMatter(t *testing.T) {
	cache, _ := newTestPriceCache(t, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, types.AssetBitcoin, []string{"eur", "usd"}, map[string]float64{"usd": 1})

	_, ok := cache.Get(ctx, types.AssetBitcoin, []string{"USD", "eur"})
	assert.True(t, ok, "key should be canonical across order and case")
}

func TestPriceCache_Miss(t *testing.T) {
	cache, _ := newTestPriceCache(t, time.Minute)

	_, ok := cache.Get(context.Background(), types.AssetEthereum, []string{"usd"})
	assert.False(t, ok)
}

func TestPriceCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestPriceCache(t, time.Second)
	ctx := context.Background()

	cache.Put(ctx, types.AssetBitcoin, []string{"usd"}, map[string]float64{"usd": 65000})

	_, ok := cache.Get(ctx, types.AssetBitcoin, []string{"usd"})
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok = cache.Get(ctx, types.AssetBitcoin, []string{"usd"})
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestPriceCache_NilCacheIsAlwaysMiss(t *testing.T) {
	var cache *PriceCache

	_, ok := cache.Get(context.Background(), types.AssetBitcoin, []string{"usd"})
	assert.False(t, ok)

	// Put on a nil cache must not panic
	cache.Put(context.Background(), types.AssetBitcoin, []string{"usd"}, map[string]float64{"usd": 1})
}
