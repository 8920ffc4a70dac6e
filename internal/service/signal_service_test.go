package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	recorded []domain.Signal
	quota    int
	err      error
}

func (f *fakeSignals) Record(_ context.Context, sig domain.Signal, defaultQuota int) error {
	if f.err != nil {
		return f.err
	}
	f.quota = defaultQuota
	f.recorded = append(f.recorded, sig)
	return nil
}

func (f *fakeSignals) ExistsJobKey(_ context.Context, jobKey string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, s := range f.recorded {
		if s.JobKey == jobKey {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSignals) Recent(context.Context, string, string, string, time.Time) ([]domain.RecentSignal, error) {
	return nil, nil
}

func (f *fakeSignals) ListByDeployment(_ context.Context, deploymentID string, _ domain.ListOpts) ([]domain.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Signal
	for _, s := range f.recorded {
		if s.DeploymentID == deploymentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSignals) ListCreatedBetween(context.Context, time.Time, time.Time) ([]domain.Signal, error) {
	return nil, nil
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
	err       error
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	if b.err != nil {
		return nil, b.err
	}
	var out []domain.StreamMessage
	for i, p := range b.streamed[stream] {
		if len(out) == count {
			break
		}
		out = append(out, domain.StreamMessage{ID: string(rune('1' + i)), Payload: p})
	}
	return out, nil
}

type fakeAudit struct {
	events []string
	detail []map[string]any
}

func (a *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	a.detail = append(a.detail, detail)
	return nil
}

func (a *fakeAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type countingSender struct{ events []string }

func (c *countingSender) Send(_ context.Context, event, _, _ string) error {
	c.events = append(c.events, event)
	return nil
}

func (c *countingSender) Name() string { return "count" }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openSignal() domain.Signal {
	return domain.Signal{
		ID:           "s1",
		JobKey:       "e1:d1:BTC",
		DeploymentID: "d1",
		Token:        "BTC",
		Side:         domain.SideLong,
		NetChange:    domain.NetChangeOpen,
		ShouldTrade:  true,
	}
}

func TestRecordPublishesAuditsAndNotifies(t *testing.T) {
	signals, bus, audit := &fakeSignals{}, newFakeBus(), &fakeAudit{}
	sender := &countingSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, nil, discard())
	svc := NewSignalService(signals, bus, audit, n, 10, discard())

	require.NoError(t, svc.Record(context.Background(), openSignal()))

	require.Len(t, signals.recorded, 1)
	assert.Equal(t, 10, signals.quota)
	assert.Len(t, bus.published[SignalChannel], 1)
	assert.Len(t, bus.streamed[SignalStream], 1)
	assert.Contains(t, string(bus.published[SignalChannel][0]), `"jobKey":"e1:d1:BTC"`)
	assert.Equal(t, []string{"signal_recorded"}, audit.events)
	assert.Equal(t, "OPEN", audit.detail[0]["net_change"])
	assert.Equal(t, []string{notify.EventSignalOpened}, sender.events)
}

func TestRecordSkipDoesNotNotify(t *testing.T) {
	audit := &fakeAudit{}
	sender := &countingSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, nil, discard())
	svc := NewSignalService(&fakeSignals{}, newFakeBus(), audit, n, 10, discard())

	reason := domain.SkipNoChange
	sig := openSignal()
	sig.NetChange = domain.NetChangeNone
	sig.ShouldTrade = false
	sig.SkippedReason = &reason

	require.NoError(t, svc.Record(context.Background(), sig))
	assert.Empty(t, sender.events)
	assert.Equal(t, "no_change", audit.detail[0]["skipped_reason"])
}

func TestRecordDuplicatePassesThrough(t *testing.T) {
	bus, audit := newFakeBus(), &fakeAudit{}
	svc := NewSignalService(&fakeSignals{err: domain.ErrAlreadyExists}, bus, audit, nil, 10, discard())

	err := svc.Record(context.Background(), openSignal())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, bus.published)
	assert.Empty(t, audit.events)
}

func TestRecordQuotaExhaustedPublishesNothing(t *testing.T) {
	bus, audit := newFakeBus(), &fakeAudit{}
	svc := NewSignalService(&fakeSignals{err: domain.ErrQuotaExhausted}, bus, audit, nil, 10, discard())

	err := svc.Record(context.Background(), openSignal())
	assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
	assert.Empty(t, bus.published)
	assert.Empty(t, audit.events)
}

func TestRecordStoreErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewSignalService(&fakeSignals{err: boom}, newFakeBus(), &fakeAudit{}, nil, 10, discard())

	err := svc.Record(context.Background(), openSignal())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "signal_service: record e1:d1:BTC")
}

func TestRecordSurvivesBusFailure(t *testing.T) {
	signals, bus, audit := &fakeSignals{}, newFakeBus(), &fakeAudit{}
	bus.err = errors.New("redis down")
	svc := NewSignalService(signals, bus, audit, nil, 10, discard())

	require.NoError(t, svc.Record(context.Background(), openSignal()))
	assert.Len(t, signals.recorded, 1)
	assert.Len(t, audit.events, 1)
}

func TestExistsJobKey(t *testing.T) {
	svc := NewSignalService(&fakeSignals{}, newFakeBus(), &fakeAudit{}, nil, 10, discard())
	ctx := context.Background()

	ok, err := svc.ExistsJobKey(ctx, "e1:d1:BTC")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Record(ctx, openSignal()))
	ok, err = svc.ExistsJobKey(ctx, "e1:d1:BTC")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListAndBacklog(t *testing.T) {
	signals, bus := &fakeSignals{}, newFakeBus()
	svc := NewSignalService(signals, bus, &fakeAudit{}, nil, 10, discard())
	ctx := context.Background()

	first := openSignal()
	second := openSignal()
	second.ID, second.JobKey, second.DeploymentID = "s2", "e2:d2:BTC", "d2"
	require.NoError(t, svc.Record(ctx, first))
	require.NoError(t, svc.Record(ctx, second))

	got, err := svc.ListByDeployment(ctx, "d2", domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].ID)

	msgs, err := svc.Backlog(ctx, "0", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
