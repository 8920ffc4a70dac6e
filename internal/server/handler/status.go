package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports the process mode and uptime.
type StatusHandler struct {
	mode      string
	version   string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, version string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, version: version, startedAt: startedAt}
}

// GetStatus responds with the running mode, version and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
