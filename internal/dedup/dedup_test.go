package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLocks is an in-process LockManager with SETNX semantics.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
	}, nil
}

func TestLockKeyFormat(t *testing.T) {
	assert.Equal(t, "signal:e1:d1:BTC", LockKey("e1", "d1", "$btc"))
}

func TestGuardSingleWinnerUnderConcurrency(t *testing.T) {
	g := NewGuard(newMemLocks(), time.Minute)
	key := LockKey("e1", "d1", "ETH")

	var acquired, held atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := g.TryAcquire(context.Background(), key)
			assert.NoError(t, err)
			if a.Acquired {
				acquired.Add(1)
			}
			if a.AlreadyHeld {
				held.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, acquired.Load())
	assert.EqualValues(t, 49, held.Load())
}

func TestGuardReleaseAllowsReacquire(t *testing.T) {
	g := NewGuard(newMemLocks(), time.Minute)
	ctx := context.Background()

	a, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, a.Acquired)

	g.Release("k")
	g.Release("k")

	a, err = g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, a.Acquired)
}

func TestGuardBackendError(t *testing.T) {
	locks := newMemLocks()
	locks.err = errors.New("redis down")
	_, err := NewGuard(locks, time.Minute).TryAcquire(context.Background(), "k")
	assert.Error(t, err)
}

type stubRecent struct {
	rows  []domain.RecentSignal
	calls int
	since time.Time
}

func (s *stubRecent) Recent(_ context.Context, _, _, _ string, since time.Time) ([]domain.RecentSignal, error) {
	s.calls++
	s.since = since
	return s.rows, nil
}

func TestWindowExists(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		rows []domain.RecentSignal
		want bool
	}{
		{"none", nil, false},
		{"recent without execution", []domain.RecentSignal{{SignalID: "s1", CreatedAt: now.Add(-time.Hour)}}, true},
		{"recent with open execution", []domain.RecentSignal{{SignalID: "s1", CreatedAt: now.Add(-time.Hour), Execution: &domain.Execution{Status: domain.ExecutionOpen, EntryPrice: 100, Quantity: 1}}}, true},
		{"failed execution does not block", []domain.RecentSignal{{SignalID: "s1", CreatedAt: now.Add(-time.Hour), Execution: &domain.Execution{Status: domain.ExecutionClosed}}}, false},
		{"closed real trade still blocks", []domain.RecentSignal{{SignalID: "s1", CreatedAt: now.Add(-time.Hour), Execution: &domain.Execution{Status: domain.ExecutionClosed, EntryPrice: 10, Quantity: 3}}}, true},
		{"outside window", []domain.RecentSignal{{SignalID: "s1", CreatedAt: now.Add(-7 * time.Hour)}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &stubRecent{rows: tc.rows}
			w := NewWindow(src, 6*time.Hour)
			w.now = func() time.Time { return now }

			got, err := w.Exists(context.Background(), "a1", "d1", "btc")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, now.Add(-6*time.Hour), src.since)
		})
	}
}

func TestWindowDisabled(t *testing.T) {
	src := &stubRecent{rows: []domain.RecentSignal{{SignalID: "s1", CreatedAt: time.Now()}}}
	got, err := NewWindow(src, 0).Exists(context.Background(), "a1", "d1", "BTC")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Zero(t, src.calls)
}
