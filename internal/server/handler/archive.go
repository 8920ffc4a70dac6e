package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// ArchiveLister lists archived objects.
type ArchiveLister interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// ArchiveHandler lists daily signal archives in object storage.
type ArchiveHandler struct {
	blobs  ArchiveLister
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs ArchiveLister, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logHandler(logger, "archives")}
}

type archiveEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// ListArchives returns archive objects under an optional "YYYY/" or
// "YYYY/MM/" prefix.
// GET /api/archives?prefix=2026/03/
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to list archives")
		return
	}
	out := make([]archiveEntry, 0, len(infos))
	for _, b := range infos {
		out = append(out, archiveEntry{Path: b.Path, Size: b.Size, LastModified: b.LastModified.UTC().Format("2006-01-02T15:04:05Z")})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}
