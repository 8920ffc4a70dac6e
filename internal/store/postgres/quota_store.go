package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// QuotaStore implements domain.QuotaStore using PostgreSQL. Debits happen in
// SignalStore.Record so they share the signal insert's transaction.
type QuotaStore struct {
	pool *pgxpool.Pool
}

// NewQuotaStore creates a new QuotaStore backed by the given connection pool.
func NewQuotaStore(pool *pgxpool.Pool) *QuotaStore {
	return &QuotaStore{pool: pool}
}

// Remaining returns the wallet's remaining trades. A wallet without a row has
// the full default allowance.
func (s *QuotaStore) Remaining(ctx context.Context, wallet string, defaultQuota int) (int, error) {
	var remaining int
	err := s.pool.QueryRow(ctx,
		`SELECT remaining FROM trade_quotas WHERE user_wallet = $1`, wallet,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultQuota, nil
		}
		return 0, fmt.Errorf("postgres: get quota for %s: %w", wallet, err)
	}
	return remaining, nil
}

var _ domain.QuotaStore = (*QuotaStore)(nil)
