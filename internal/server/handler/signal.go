package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// SignalLister defines the methods that the signal handler requires.
type SignalLister interface {
	ListByDeployment(ctx context.Context, deploymentID string, opts domain.ListOpts) ([]domain.Signal, error)
}

// SignalHandler serves signal history endpoints.
type SignalHandler struct {
	signals SignalLister
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalLister, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, logger: logHandler(logger, "signals")}
}

type listSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
}

// ListSignals returns a deployment's signals, newest first.
// GET /api/signals?deployment=...&limit=&offset=&since=&until=
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	deploymentID := r.URL.Query().Get("deployment")
	if deploymentID == "" {
		writeError(w, http.StatusBadRequest, "deployment query parameter required")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since and until must be RFC 3339 timestamps")
		return
	}

	signals, err := h.signals.ListByDeployment(r.Context(), deploymentID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed",
			slog.String("deployment_id", deploymentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	writeJSON(w, http.StatusOK, listSignalsResponse{Signals: signals})
}
