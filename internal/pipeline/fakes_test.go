package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/oracle"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memEvents struct {
	mu        sync.Mutex
	events    map[string]domain.Event
	processed []string
}

func (m *memEvents) ListPending(_ context.Context, limit int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if !e.Processed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) GetByID(_ context.Context, id string) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memEvents) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.events[id]
	e.Processed = true
	m.events[id] = e
	m.processed = append(m.processed, id)
	return nil
}

type memAgents map[string]domain.Agent

func (m memAgents) GetByID(_ context.Context, id string) (domain.Agent, error) {
	a, ok := m[id]
	if !ok {
		return domain.Agent{}, domain.ErrNotFound
	}
	return a, nil
}

func (m memAgents) ListBySource(_ context.Context, sourceID string) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range m {
		for _, s := range a.SourceIDs {
			if s == sourceID && a.Active {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

type memDeployments struct {
	items map[string]domain.Deployment
	err   error
}

func (m *memDeployments) GetByID(_ context.Context, id string) (domain.Deployment, error) {
	if m.err != nil {
		return domain.Deployment{}, m.err
	}
	d, ok := m.items[id]
	if !ok {
		return domain.Deployment{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDeployments) ListActiveByAgent(_ context.Context, agentID string) ([]domain.Deployment, error) {
	var out []domain.Deployment
	for _, d := range m.items {
		if d.AgentID == agentID && d.Status == domain.DeploymentActive {
			out = append(out, d)
		}
	}
	return out, nil
}

// ledger stores signals, their executions and quota balances. It implements
// SignalRecorder, dedup.RecentSource and domain.QuotaStore.
type ledger struct {
	mu           sync.Mutex
	signals      []domain.Signal
	executions   map[string]*domain.Execution
	remaining    map[string]int
	defaultQuota int
}

func newLedger(defaultQuota int) *ledger {
	return &ledger{
		executions:   map[string]*domain.Execution{},
		remaining:    map[string]int{},
		defaultQuota: defaultQuota,
	}
}

func (l *ledger) Record(_ context.Context, sig domain.Signal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.signals {
		if s.JobKey == sig.JobKey {
			return domain.ErrAlreadyExists
		}
	}
	r, ok := l.remaining[sig.UserWallet]
	if !ok {
		r = l.defaultQuota
	}
	if r <= 0 {
		return domain.ErrQuotaExhausted
	}
	l.signals = append(l.signals, sig)
	l.remaining[sig.UserWallet] = r - 1
	return nil
}

func (l *ledger) ExistsJobKey(_ context.Context, jobKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.signals {
		if s.JobKey == jobKey {
			return true, nil
		}
	}
	return false, nil
}

func (l *ledger) Recent(_ context.Context, agentID, deploymentID, token string, since time.Time) ([]domain.RecentSignal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.RecentSignal
	for _, s := range l.signals {
		if s.AgentID == agentID && s.DeploymentID == deploymentID && s.Token == token && !s.CreatedAt.Before(since) {
			out = append(out, domain.RecentSignal{SignalID: s.ID, CreatedAt: s.CreatedAt, Execution: l.executions[s.ID]})
		}
	}
	return out, nil
}

func (l *ledger) Remaining(_ context.Context, wallet string, defaultQuota int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.remaining[wallet]; ok {
		return r, nil
	}
	return defaultQuota, nil
}

func (l *ledger) all() []domain.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Signal(nil), l.signals...)
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
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

type stubResolver struct {
	res   domain.Resolution
	calls atomic.Int32
}

func (s *stubResolver) Resolve(_ context.Context, _ domain.VenueConfig, token string) domain.Resolution {
	s.calls.Add(1)
	r := s.res
	r.Token = token
	return r
}

type stubAccounts struct{ snap domain.AccountSnapshot }

func (s stubAccounts) Snapshot(_ context.Context, v domain.Venue, wallet string) domain.AccountSnapshot {
	snap := s.snap
	snap.Venue, snap.Wallet = v, wallet
	return snap
}

type stubMetrics struct{}

func (stubMetrics) Metrics(_ context.Context, token string) domain.MarketMetrics {
	return domain.MarketMetrics{Token: token, Quality: 80, Sentiment: 70, SocialGrowth: 40, Momentum: 6, Rank: 5, Available: true}
}

// oracleClient is an oracle.Client returning a fixed body or error after an
// optional delay. It keeps the last request it was sent.
type oracleClient struct {
	body  []byte
	err   error
	delay time.Duration
	calls atomic.Int32

	mu   sync.Mutex
	last oracle.Request
}

func (c *oracleClient) lastInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Input
}

func (c *oracleClient) Complete(ctx context.Context, req oracle.Request) ([]byte, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = req
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.body, c.err
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []domain.Job
	seen     map[string]bool
	acked    []string
	retried  map[string]time.Duration
	failed   map[string]string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{seen: map[string]bool{}, retried: map[string]time.Duration{}, failed: map[string]string{}}
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[job.ID] {
		return false, nil
	}
	q.seen[job.ID] = true
	q.enqueued = append(q.enqueued, job)
	return true, nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ string, _ time.Duration) (*domain.Delivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) Ack(_ context.Context, d domain.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, d.Job.ID)
	return nil
}

func (q *fakeQueue) Retry(_ context.Context, d domain.Delivery, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried[d.Job.ID] = delay
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, d domain.Delivery, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[d.Job.ID] = reason
	return nil
}

func (q *fakeQueue) Stats(context.Context) (domain.QueueStats, error) {
	return domain.QueueStats{}, nil
}
