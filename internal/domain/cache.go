package domain

import (
	"context"
	"time"
)

// VenueMarketCache provides fast venue listing lookups.
type VenueMarketCache interface {
	Set(ctx context.Context, market VenueMarket) error
	Get(ctx context.Context, venue Venue, token string) (VenueMarket, error)
	Invalidate(ctx context.Context, venue Venue, token string) error
}

// MetricsCache stores recent market metrics per token.
type MetricsCache interface {
	SetMetrics(ctx context.Context, m MarketMetrics) error
	GetMetrics(ctx context.Context, token string) (MarketMetrics, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// JobQueue is a durable at-least-once work queue. Enqueue reports false when
// a job with the same ID was already enqueued recently. Dequeue returns nil
// when no job arrived within block.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) (bool, error)
	Dequeue(ctx context.Context, consumer string, block time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Retry(ctx context.Context, d Delivery, delay time.Duration) error
	Fail(ctx context.Context, d Delivery, reason string) error
	Stats(ctx context.Context) (QueueStats, error)
}
