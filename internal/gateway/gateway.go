// Package gateway fetches a wallet's balance and open positions for a venue
// and degrades to an empty account on any failure.
package gateway

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"golang.org/x/sync/errgroup"
)

// AccountSource is the raw per-venue account API.
type AccountSource interface {
	Balance(ctx context.Context, v domain.Venue, wallet string) (float64, error)
	Positions(ctx context.Context, v domain.Venue, wallet string) ([]domain.OpenPosition, error)
}

// Gateway wraps an AccountSource with the degrade-to-empty policy.
type Gateway struct {
	src    AccountSource
	logger *slog.Logger
}

// New creates a Gateway.
func New(src AccountSource, logger *slog.Logger) *Gateway {
	return &Gateway{
		src:    src,
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// Snapshot returns the account view of wallet on v. It never returns an
// error: a failed balance or positions call yields a Degraded snapshot with
// zero balance and no positions, so the oracle cannot size against stale or
// partial data.
func (g *Gateway) Snapshot(ctx context.Context, v domain.Venue, wallet string) domain.AccountSnapshot {
	var (
		balance   float64
		positions []domain.OpenPosition
		eg        errgroup.Group
	)
	eg.Go(func() error {
		var err error
		balance, err = g.src.Balance(ctx, v, wallet)
		return err
	})
	eg.Go(func() error {
		var err error
		positions, err = g.src.Positions(ctx, v, wallet)
		return err
	})

	snap := domain.AccountSnapshot{Venue: v, Wallet: wallet}
	if err := eg.Wait(); err != nil {
		g.logger.WarnContext(ctx, "account snapshot degraded",
			slog.String("venue", string(v)),
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		snap.Degraded = true
		snap.Reason = err.Error()
		return snap
	}

	if balance < 0 {
		balance = 0
	}
	snap.Balance = balance
	snap.Positions = positions
	return snap
}
