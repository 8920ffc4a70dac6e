package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MetricsCache implements domain.MetricsCache using Redis hashes.
// Each token's metrics are stored at key "metrics:{token}" with one field per
// metric and expire after the configured TTL.
type MetricsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMetricsCache creates a MetricsCache backed by the given Client.
func NewMetricsCache(c *Client, ttl time.Duration) *MetricsCache {
	return &MetricsCache{rdb: c.Underlying(), ttl: ttl}
}

func metricsKey(token string) string {
	return "metrics:" + domain.NormalizeToken(token)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// SetMetrics stores m. Unavailable metrics are never cached.
func (mc *MetricsCache) SetMetrics(ctx context.Context, m domain.MarketMetrics) error {
	if !m.Available {
		return nil
	}
	key := metricsKey(m.Token)
	fields := map[string]any{
		"quality":       formatFloat(m.Quality),
		"sentiment":     formatFloat(m.Sentiment),
		"social_growth": formatFloat(m.SocialGrowth),
		"momentum":      formatFloat(m.Momentum),
		"rank":          strconv.Itoa(m.Rank),
	}

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set metrics %s: %w", m.Token, err)
	}
	return nil
}

// GetMetrics retrieves cached metrics for token.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MetricsCache) GetMetrics(ctx context.Context, token string) (domain.MarketMetrics, error) {
	vals, err := mc.rdb.HGetAll(ctx, metricsKey(token)).Result()
	if err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("redis: get metrics %s: %w", token, err)
	}
	if len(vals) == 0 {
		return domain.MarketMetrics{}, domain.ErrNotFound
	}

	m := domain.MarketMetrics{Token: domain.NormalizeToken(token), Available: true}
	for field, dst := range map[string]*float64{
		"quality":       &m.Quality,
		"sentiment":     &m.Sentiment,
		"social_growth": &m.SocialGrowth,
		"momentum":      &m.Momentum,
	} {
		v, ok := vals[field]
		if !ok {
			return domain.MarketMetrics{}, domain.ErrNotFound
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.MarketMetrics{}, fmt.Errorf("redis: parse %s for %s: %w", field, token, err)
		}
		*dst = f
	}
	rank, err := strconv.Atoi(vals["rank"])
	if err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("redis: parse rank for %s: %w", token, err)
	}
	m.Rank = rank
	return m, nil
}

// Compile-time interface check.
var _ domain.MetricsCache = (*MetricsCache)(nil)
