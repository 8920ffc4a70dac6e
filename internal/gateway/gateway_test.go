package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	balance    float64
	balanceErr error
	positions  []domain.OpenPosition
	posErr     error
}

func (s stubSource) Balance(context.Context, domain.Venue, string) (float64, error) {
	return s.balance, s.balanceErr
}

func (s stubSource) Positions(context.Context, domain.Venue, string) ([]domain.OpenPosition, error) {
	return s.positions, s.posErr
}

func logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSnapshotHappyPath(t *testing.T) {
	g := New(stubSource{
		balance:   420,
		positions: []domain.OpenPosition{{ID: "1", Token: "BTC", Side: domain.SideLong}},
	}, logger())

	snap := g.Snapshot(context.Background(), domain.VenueOstium, "0xabc")
	assert.False(t, snap.Degraded)
	assert.Equal(t, 420.0, snap.Balance)
	assert.Len(t, snap.Positions, 1)
	assert.Len(t, snap.PositionsFor("btc"), 1)
	assert.Empty(t, snap.PositionsFor("ETH"))
}

func TestSnapshotDegradesOnAnyFailure(t *testing.T) {
	boom := errors.New("venue down")
	cases := map[string]stubSource{
		"balance":   {balanceErr: boom, positions: []domain.OpenPosition{{ID: "1"}}},
		"positions": {balance: 100, posErr: boom},
		"both":      {balanceErr: boom, posErr: boom},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			snap := New(src, logger()).Snapshot(context.Background(), domain.VenueAster, "0xabc")
			assert.True(t, snap.Degraded)
			assert.Zero(t, snap.Balance)
			assert.Empty(t, snap.Positions)
			assert.Contains(t, snap.Reason, "venue down")
		})
	}
}
