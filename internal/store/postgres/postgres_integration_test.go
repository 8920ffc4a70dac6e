package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// testClient connects to ALPHASIGNAL_TEST_DATABASE_URL and migrates, or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("ALPHASIGNAL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ALPHASIGNAL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))
	require.NoError(t, c.RunMigrations(ctx), "migrations must be idempotent")
	return c
}

func testSignal(wallet string) domain.Signal {
	id := uuid.NewString()
	reason := domain.SkipOracleFallback
	return domain.Signal{
		ID:             id,
		JobKey:         "e-" + id + ":d1:BTC",
		AgentID:        "a-" + wallet,
		DeploymentID:   "d-" + wallet,
		UserWallet:     wallet,
		Token:          "BTC",
		Venue:          domain.VenueOstium,
		Side:           domain.SideLong,
		SizeModel:      domain.SizeModel{Type: "balance-percentage"},
		RiskModel:      domain.RiskModel{StopLoss: 0.1, TakeProfit: 0.2},
		SourceEventIDs: []string{"e1"},
		NetChange:      domain.NetChangeNone,
		Leverage:       1,
		OracleFailure:  domain.OracleTimeout,
		SkippedReason:  &reason,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestSignalRecordDebitsOnce(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	signals := NewSignalStore(c.Pool())
	quotas := NewQuotaStore(c.Pool())
	wallet := "0x" + uuid.NewString()

	remaining, err := quotas.Remaining(ctx, wallet, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	sig := testSignal(wallet)
	require.NoError(t, signals.Record(ctx, sig, 10))

	dup := sig
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, signals.Record(ctx, dup, 10), domain.ErrAlreadyExists)

	remaining, err = quotas.Remaining(ctx, wallet, 10)
	require.NoError(t, err)
	assert.Equal(t, 9, remaining)

	got, err := signals.ListByDeployment(ctx, sig.DeploymentID, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sig.JobKey, got[0].JobKey)
	require.NotNil(t, got[0].SkippedReason)
	assert.Equal(t, domain.SkipOracleFallback, *got[0].SkippedReason)
	assert.Equal(t, domain.OracleTimeout, got[0].OracleFailure)

	recent, err := signals.Recent(ctx, sig.AgentID, sig.DeploymentID, "btc", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Nil(t, recent[0].Execution)
}

func TestSignalRecordStopsAtZeroQuota(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	signals := NewSignalStore(c.Pool())
	quotas := NewQuotaStore(c.Pool())
	wallet := "0x" + uuid.NewString()

	first := testSignal(wallet)
	require.NoError(t, signals.Record(ctx, first, 1))

	ok, err := signals.ExistsJobKey(ctx, first.JobKey)
	require.NoError(t, err)
	assert.True(t, ok)

	second := testSignal(wallet)
	assert.ErrorIs(t, signals.Record(ctx, second, 1), domain.ErrQuotaExhausted)

	ok, err = signals.ExistsJobKey(ctx, second.JobKey)
	require.NoError(t, err)
	assert.False(t, ok, "exhausted quota must roll back the insert")

	remaining, err := quotas.Remaining(ctx, wallet, 1)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestSignalRecordConcurrentDebits(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	signals := NewSignalStore(c.Pool())
	wallet := "0x" + uuid.NewString()

	const workers = 4
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- signals.Record(ctx, testSignal(wallet), 2)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, exhausted int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrQuotaExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, workers-2, exhausted)
}

func TestVenueMarketSeedAndUpsert(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewVenueMarketStore(c.Pool())

	m, err := store.Get(ctx, domain.VenueOstium, "btc")
	require.NoError(t, err)
	assert.True(t, m.Active)

	token := "T" + uuid.NewString()[:8]
	require.NoError(t, store.UpsertBatch(ctx, []domain.VenueMarket{
		{Venue: domain.VenueAster, Token: token, Name: token + "USDT", Active: true, MaxLeverage: 20},
	}))
	m, err = store.Get(ctx, domain.VenueAster, token)
	require.NoError(t, err)
	assert.Equal(t, 20, m.MaxLeverage)

	_, err = store.Get(ctx, domain.VenueHyperliquid, "NOPE"+token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditLogFilterByEvent(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	audit := NewAuditStore(c.Pool())
	event := "test_" + uuid.NewString()[:8]

	require.NoError(t, audit.Log(ctx, event, map[string]any{"n": 1}))
	require.NoError(t, audit.Log(ctx, event, nil))
	require.NoError(t, audit.Log(ctx, "other_"+event, nil))

	got, err := audit.List(ctx, event, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	withDetail := 0
	for _, e := range got {
		assert.Equal(t, event, e.Event)
		if e.Detail != nil {
			withDetail++
			assert.EqualValues(t, 1, e.Detail["n"])
		}
	}
	assert.Equal(t, 1, withDetail)
}
