package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultMarketTTL = 5 * time.Minute

// VenueMarketCache implements domain.VenueMarketCache using Redis hashes with
// JSON-serialized listings.
//
// Key schema:
//
//	venue_market:{venue}:{token} - hash with field "data" containing JSON
type VenueMarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewVenueMarketCache creates a VenueMarketCache backed by the given Client.
// A non-positive ttl uses the 5 minute default.
func NewVenueMarketCache(c *Client, ttl time.Duration) *VenueMarketCache {
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &VenueMarketCache{rdb: c.Underlying(), ttl: ttl}
}

func venueMarketKey(v domain.Venue, token string) string {
	return "venue_market:" + string(v) + ":" + domain.NormalizeToken(token)
}

// Set stores a listing with the cache TTL.
func (mc *VenueMarketCache) Set(ctx context.Context, market domain.VenueMarket) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal venue market %s/%s: %w", market.Venue, market.Token, err)
	}

	key := venueMarketKey(market.Venue, market.Token)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set venue market %s/%s: %w", market.Venue, market.Token, err)
	}
	return nil
}

// Get retrieves a listing. It returns domain.ErrNotFound on a cache miss.
func (mc *VenueMarketCache) Get(ctx context.Context, v domain.Venue, token string) (domain.VenueMarket, error) {
	data, err := mc.rdb.HGet(ctx, venueMarketKey(v, token), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VenueMarket{}, domain.ErrNotFound
		}
		return domain.VenueMarket{}, fmt.Errorf("redis: get venue market %s/%s: %w", v, token, err)
	}

	var market domain.VenueMarket
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.VenueMarket{}, fmt.Errorf("redis: unmarshal venue market %s/%s: %w", v, token, err)
	}
	return market, nil
}

// Invalidate removes a listing from the cache.
func (mc *VenueMarketCache) Invalidate(ctx context.Context, v domain.Venue, token string) error {
	if err := mc.rdb.Del(ctx, venueMarketKey(v, token)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate venue market %s/%s: %w", v, token, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.VenueMarketCache = (*VenueMarketCache)(nil)
