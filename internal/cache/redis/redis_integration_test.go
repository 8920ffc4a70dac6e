package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to ALPHASIGNAL_TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("ALPHASIGNAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ALPHASIGNAL_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManagerExclusive(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	unlock, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock2, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestJobQueueLifecycle(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	prefix := "test:jobs:" + uuid.NewString()
	t.Cleanup(func() {
		_ = c.Underlying().Del(context.Background(), prefix+":stream", prefix+":delayed", prefix+":failed").Err()
	})

	q, err := NewJobQueue(ctx, c, JobQueueOptions{Prefix: prefix})
	require.NoError(t, err)

	job := domain.Job{Type: domain.JobTypeGenerateSignal, EventID: "e1", DeploymentID: "d1", AgentID: "a1", Token: "BTC"}
	ok, err := q.Enqueue(ctx, job)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Enqueue(ctx, job)
	require.NoError(t, err)
	assert.False(t, ok, "same combination must not be enqueued twice")

	d, err := q.Dequeue(ctx, "w1", 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "e1:d1:BTC", d.Job.ID)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Active)

	require.NoError(t, q.Retry(ctx, *d, 0))
	time.Sleep(5 * time.Millisecond)

	d, err = q.Dequeue(ctx, "w1", 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 1, d.Job.Attempts)

	require.NoError(t, q.Fail(ctx, *d, "gave up"))
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Failed: 1}, stats)
}

func TestJobQueueReclaimCountsAttempts(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	prefix := "test:jobs:" + uuid.NewString()
	t.Cleanup(func() {
		_ = c.Underlying().Del(context.Background(), prefix+":stream", prefix+":delayed", prefix+":failed").Err()
	})

	const visibility = 50 * time.Millisecond
	q, err := NewJobQueue(ctx, c, JobQueueOptions{Prefix: prefix, VisibilityTimeout: visibility})
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, domain.Job{Type: domain.JobTypeGenerateSignal, EventID: "e1", DeploymentID: "d1", Token: "ETH"})
	require.NoError(t, err)

	d, err := q.Dequeue(ctx, "crashed-1", 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Zero(t, d.Job.Attempts)

	// Never settled: each reclaim after the visibility timeout is one more attempt.
	for want := 1; want <= 2; want++ {
		time.Sleep(2 * visibility)
		d, err = q.Dequeue(ctx, "w2", 100*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "e1:d1:ETH", d.Job.ID)
		assert.Equal(t, want, d.Job.Attempts)
	}

	require.NoError(t, q.Ack(ctx, *d))
}

func TestSignalBusBacklogAfterID(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	stream := "test:stream:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Underlying().Del(context.Background(), stream).Err() })

	bus := NewSignalBus(c, 100)
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, stream, []byte(p)))
	}

	all, err := bus.StreamRead(ctx, stream, "0", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", string(all[0].Payload))

	rest, err := bus.StreamRead(ctx, stream, all[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "b", string(rest[0].Payload))

	none, err := bus.StreamRead(ctx, stream, all[2].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRateLimiterWindow(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)
	key := "test:" + uuid.NewString()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, key, 2, 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, key, 2, 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, key, 2, 200*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, rl.Wait(cctx, key, 1, time.Minute), context.Canceled)
}

func TestCachesRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	token := "T" + uuid.NewString()[:8]

	metrics := NewMetricsCache(c, time.Minute)
	_, err := metrics.GetMetrics(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, metrics.SetMetrics(ctx, domain.MarketMetrics{Token: token, Quality: 0.8, Rank: 12, Available: true}))
	m, err := metrics.GetMetrics(ctx, "$"+token)
	require.NoError(t, err)
	assert.Equal(t, 0.8, m.Quality)
	assert.Equal(t, 12, m.Rank)
	assert.True(t, m.Available)

	markets := NewVenueMarketCache(c, time.Minute)
	require.NoError(t, markets.Set(ctx, domain.VenueMarket{Venue: domain.VenueAster, Token: token, Active: true, MaxLeverage: 20}))
	vm, err := markets.Get(ctx, domain.VenueAster, token)
	require.NoError(t, err)
	assert.Equal(t, 20, vm.MaxLeverage)

	require.NoError(t, markets.Invalidate(ctx, domain.VenueAster, token))
	_, err = markets.Get(ctx, domain.VenueAster, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
