package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// VenueMarketReader defines the venue listing queries the handler requires.
type VenueMarketReader interface {
	Get(ctx context.Context, venue domain.Venue, token string) (domain.VenueMarket, error)
	ListByVenue(ctx context.Context, venue domain.Venue) ([]domain.VenueMarket, error)
}

// VenueMarketHandler serves venue market listings.
type VenueMarketHandler struct {
	markets VenueMarketReader
	logger  *slog.Logger
}

// NewVenueMarketHandler creates a VenueMarketHandler.
func NewVenueMarketHandler(markets VenueMarketReader, logger *slog.Logger) *VenueMarketHandler {
	return &VenueMarketHandler{markets: markets, logger: logHandler(logger, "venue_markets")}
}

// ListAvailable returns the active markets of a venue, or whether one token
// is tradeable when token is given.
// GET /api/venue-markets/available?venue=OSTIUM[&token=BTC]
func (h *VenueMarketHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	v, err := domain.ParseVenue(r.URL.Query().Get("venue"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown venue")
		return
	}

	if token := r.URL.Query().Get("token"); token != "" {
		m, err := h.markets.Get(r.Context(), v, domain.NormalizeToken(token))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusOK, map[string]any{"venue": v, "token": domain.NormalizeToken(token), "available": false})
		case err != nil:
			h.logger.ErrorContext(r.Context(), "get venue market failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to look up market")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"venue": v, "token": m.Token, "available": m.Active, "market": m})
		}
		return
	}

	markets, err := h.markets.ListByVenue(r.Context(), v)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list venue markets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	active := make([]domain.VenueMarket, 0, len(markets))
	for _, m := range markets {
		if m.Active {
			active = append(active, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"venue": v, "markets": active})
}
