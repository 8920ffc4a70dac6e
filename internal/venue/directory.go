package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// CachedDirectory reads listings through a cache in front of the store.
type CachedDirectory struct {
	store  domain.VenueMarketStore
	cache  domain.VenueMarketCache
	logger *slog.Logger
}

// NewCachedDirectory creates a CachedDirectory. cache may be nil.
func NewCachedDirectory(store domain.VenueMarketStore, cache domain.VenueMarketCache, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "venue_directory")),
	}
}

// Lookup returns the listing of token on v, or domain.ErrNotFound.
func (d *CachedDirectory) Lookup(ctx context.Context, v domain.Venue, token string) (domain.VenueMarket, error) {
	token = domain.NormalizeToken(token)
	if d.cache != nil {
		m, err := d.cache.Get(ctx, v, token)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			d.logger.DebugContext(ctx, "market cache read failed", slog.String("error", err.Error()))
		}
	}

	m, err := d.store.Get(ctx, v, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VenueMarket{}, err
		}
		return domain.VenueMarket{}, fmt.Errorf("venue: lookup %s/%s: %w", v, token, err)
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, m); err != nil {
			d.logger.DebugContext(ctx, "market cache write failed", slog.String("error", err.Error()))
		}
	}
	return m, nil
}

var _ Directory = (*CachedDirectory)(nil)
