package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// VenueMarketStore implements domain.VenueMarketStore using PostgreSQL.
type VenueMarketStore struct {
	pool *pgxpool.Pool
}

// NewVenueMarketStore creates a new VenueMarketStore backed by the given connection pool.
func NewVenueMarketStore(pool *pgxpool.Pool) *VenueMarketStore {
	return &VenueMarketStore{pool: pool}
}

const venueMarketSelectCols = `venue, token, name, active, max_leverage`

func scanVenueMarket(row pgx.Row) (domain.VenueMarket, error) {
	var m domain.VenueMarket
	var venue string
	if err := row.Scan(&venue, &m.Token, &m.Name, &m.Active, &m.MaxLeverage); err != nil {
		return domain.VenueMarket{}, err
	}
	m.Venue = domain.Venue(venue)
	return m, nil
}

// Get returns the listing for token on venue. Inactive listings are returned
// as stored; callers decide what inactive means.
func (s *VenueMarketStore) Get(ctx context.Context, venue domain.Venue, token string) (domain.VenueMarket, error) {
	m, err := scanVenueMarket(s.pool.QueryRow(ctx,
		`SELECT `+venueMarketSelectCols+` FROM venue_markets WHERE venue = $1 AND token = $2`,
		string(venue), domain.NormalizeToken(token)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VenueMarket{}, domain.ErrNotFound
		}
		return domain.VenueMarket{}, fmt.Errorf("postgres: get venue market %s/%s: %w", venue, token, err)
	}
	return m, nil
}

// UpsertBatch inserts or updates multiple listings in a single batch.
func (s *VenueMarketStore) UpsertBatch(ctx context.Context, markets []domain.VenueMarket) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO venue_markets (venue, token, name, active, max_leverage, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (venue, token) DO UPDATE SET
			name         = EXCLUDED.name,
			active       = EXCLUDED.active,
			max_leverage = EXCLUDED.max_leverage,
			updated_at   = NOW()`

	for _, m := range markets {
		batch.Queue(query, string(m.Venue), domain.NormalizeToken(m.Token), m.Name, m.Active, m.MaxLeverage)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert venue market batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByVenue returns the active listings of a venue ordered by token.
func (s *VenueMarketStore) ListByVenue(ctx context.Context, venue domain.Venue) ([]domain.VenueMarket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+venueMarketSelectCols+` FROM venue_markets
		 WHERE venue = $1 AND active = TRUE
		 ORDER BY token`, string(venue))
	if err != nil {
		return nil, fmt.Errorf("postgres: list venue markets %s: %w", venue, err)
	}
	defer rows.Close()

	var markets []domain.VenueMarket
	for rows.Next() {
		m, err := scanVenueMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan venue market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

var _ domain.VenueMarketStore = (*VenueMarketStore)(nil)
