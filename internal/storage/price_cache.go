package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/treasury-tracker/internal/types"
)

// PriceCache is a read-through cache for simple-price lookups. Prices move
// constantly, so entries carry a short TTL; a cache failure is treated as a
// miss and never blocks a capture.
type PriceCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewPriceCache creates a price cache over a Redis connection
func NewPriceCache(cache *RedisCache, ttl time.Duration) *PriceCache {
	return &PriceCache{cache: cache, ttl: ttl}
}

// priceKey builds a deterministic key for an asset and currency set
func priceKey(assetID types.AssetID, vsCurrencies []string) string {
	currencies := make([]string, len(vsCurrencies))
	for i, c := range vsCurrencies {
		currencies[i] = strings.ToLower(c)
	}
	sort.Strings(currencies)
	return fmt.Sprintf("price:%s:%s", assetID, strings.Join(currencies, ","))
}

// Get returns the cached currency->rate map for an asset, or ok=false on miss
func (p *PriceCache) Get(ctx context.Context, assetID types.AssetID, vsCurrencies []string) (map[string]float64, bool) {
	if p == nil || p.cache == nil {
		return nil, false
	}

	// redis.Nil is an ordinary miss; any other error degrades to a miss too
	raw, err := p.cache.Get(ctx, priceKey(assetID, vsCurrencies))
	if err != nil {
		return nil, false
	}

	var rates map[string]float64
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, false
	}

	return rates, true
}

// Put stores the currency->rate map for an asset
func (p *PriceCache) Put(ctx context.Context, assetID types.AssetID, vsCurrencies []string, rates map[string]float64) {
	if p == nil || p.cache == nil {
		return
	}

	raw, err := json.Marshal(rates)
	if err != nil {
		return
	}

	_ = p.cache.Set(ctx, priceKey(assetID, vsCurrencies), string(raw), p.ttl)
}
