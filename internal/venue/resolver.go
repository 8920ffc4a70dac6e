// Package venue decides where, if anywhere, a token can be traded for a given
// deployment.
package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// Directory answers whether a token is listed on a venue.
type Directory interface {
	Lookup(ctx context.Context, v domain.Venue, token string) (domain.VenueMarket, error)
}

// Resolver picks the first venue in a deployment's priority list that lists
// the token.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewResolver creates a Resolver over dir.
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		dir:    dir,
		logger: logger.With(slog.String("component", "venue_resolver")),
	}
}

// Resolve returns the venue for token under cfg. Stablecoins are rejected
// before any lookup. A directory error for one venue is folded into the
// reason and the next venue is tried.
func (r *Resolver) Resolve(ctx context.Context, cfg domain.VenueConfig, token string) domain.Resolution {
	token = domain.NormalizeToken(token)
	res := domain.Resolution{Token: token}

	if token == "" {
		res.Reason = "empty token"
		return res
	}
	if IsStablecoin(token) {
		res.Reason = fmt.Sprintf("%s is a stablecoin", token)
		return res
	}

	venues := cfg.Venues()
	if len(venues) == 0 {
		res.Reason = "deployment has no venue configured"
		return res
	}

	var misses []string
	for _, v := range venues {
		m, err := r.dir.Lookup(ctx, v, token)
		switch {
		case err == nil && m.Active:
			res.Available = true
			res.Venue = v
			res.MaxLeverage = m.MaxLeverage
			if res.MaxLeverage <= 0 || res.MaxLeverage > domain.MaxLeverageCap {
				res.MaxLeverage = domain.MaxLeverageCap
			}
			return res
		case err == nil:
			misses = append(misses, fmt.Sprintf("%s: inactive", v))
		case errors.Is(err, domain.ErrNotFound):
			misses = append(misses, fmt.Sprintf("%s: not listed", v))
		default:
			r.logger.WarnContext(ctx, "venue lookup failed",
				slog.String("venue", string(v)),
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
			misses = append(misses, fmt.Sprintf("%s: lookup failed", v))
		}
	}

	res.Reason = fmt.Sprintf("%s not available (%s)", token, strings.Join(misses, "; "))
	return res
}
