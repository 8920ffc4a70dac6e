package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/pipeline"
)

// Scanner runs one trigger pass.
type Scanner interface {
	Scan(ctx context.Context) (pipeline.ScanResult, error)
}

// TriggerHandler runs the event trigger on demand.
type TriggerHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewTriggerHandler creates a TriggerHandler.
func NewTriggerHandler(scanner Scanner, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{scanner: scanner, logger: logHandler(logger, "trigger")}
}

// Trigger runs one scan synchronously and returns its counters. A scan
// already running elsewhere yields 409.
// POST /api/trigger
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "trigger requested")
	res, err := h.scanner.Scan(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "trigger scan failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	status := http.StatusOK
	if res.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{
		"result":       res,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
