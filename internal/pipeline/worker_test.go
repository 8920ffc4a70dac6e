package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

type procFunc func(ctx context.Context, job domain.Job) (domain.JobOutcome, error)

func (f procFunc) Process(ctx context.Context, job domain.Job) (domain.JobOutcome, error) {
	return f(ctx, job)
}

func delivery(attempts int) domain.Delivery {
	j := job("e1", "BTC")
	j.Attempts = attempts
	return domain.Delivery{Receipt: "1-0", Job: j}
}

func newPool(q *fakeQueue, p JobProcessor) *WorkerPool {
	return NewWorkerPool(q, p, WorkerPoolConfig{Workers: 2, Concurrency: 3, MaxAttempts: 3, RetryBackoff: time.Second}, discardLogger())
}

func TestWorkerAcksTerminalOutcomes(t *testing.T) {
	for _, out := range []domain.JobOutcome{domain.OutcomeOpened, domain.OutcomeSkipped, domain.OutcomeDuplicate, domain.OutcomeRejected} {
		q := newFakeQueue()
		newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) { return out, nil })).
			Handle(context.Background(), delivery(0))
		assert.Equal(t, []string{"e1:d1:BTC"}, q.acked, string(out))
		assert.Empty(t, q.retried)
	}
}

func TestWorkerRetriesWithBackoff(t *testing.T) {
	q := newFakeQueue()
	pool := newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) {
		return "", errors.New("postgres unavailable")
	}))

	pool.Handle(context.Background(), delivery(1))
	assert.Equal(t, 2*time.Second, q.retried["e1:d1:BTC"])
	assert.Empty(t, q.acked)
	assert.Empty(t, q.failed)
}

func TestWorkerFailsAfterMaxAttempts(t *testing.T) {
	q := newFakeQueue()
	pool := newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) {
		return "", errors.New("postgres unavailable")
	}))

	pool.Handle(context.Background(), delivery(2))
	assert.Equal(t, "postgres unavailable", q.failed["e1:d1:BTC"])
	assert.Empty(t, q.retried)
}

func TestWorkerFailsRepeatedlyAbandonedJob(t *testing.T) {
	q := newFakeQueue()
	called := false
	pool := newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) {
		called = true
		return domain.OutcomeOpened, nil
	}))

	pool.Handle(context.Background(), delivery(3))
	assert.False(t, called)
	assert.Equal(t, "abandoned after 3 attempts", q.failed["e1:d1:BTC"])
	assert.Empty(t, q.acked)
	assert.Empty(t, q.retried)
}

func TestWorkerRecoversPanic(t *testing.T) {
	q := newFakeQueue()
	pool := newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) {
		panic("nil map")
	}))

	require.NotPanics(t, func() { pool.Handle(context.Background(), delivery(0)) })
	assert.Contains(t, q.retried, "e1:d1:BTC")
}

func TestWorkerFailsUnknownJobType(t *testing.T) {
	q := newFakeQueue()
	called := false
	pool := newPool(q, procFunc(func(context.Context, domain.Job) (domain.JobOutcome, error) {
		called = true
		return domain.OutcomeOpened, nil
	}))

	d := delivery(0)
	d.Job.Type = "REBALANCE"
	pool.Handle(context.Background(), d)
	assert.False(t, called)
	assert.Contains(t, q.failed["e1:d1:BTC"], "unknown job type")
}

func TestRetryDelay(t *testing.T) {
	pool := newPool(newFakeQueue(), nil)
	assert.Equal(t, time.Second, pool.RetryDelay(0))
	assert.Equal(t, 4*time.Second, pool.RetryDelay(2))
	assert.Equal(t, 5*time.Minute, pool.RetryDelay(20))
	assert.Equal(t, 6, pool.Size())
}

func TestWorkerPoolStopsOnCancel(t *testing.T) {
	pool := newPool(newFakeQueue(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
