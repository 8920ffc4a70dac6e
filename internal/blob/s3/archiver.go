package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// Days larger than this are uploaded in parts.
	multipartThreshold = 8 * 1024 * 1024
)

// SignalRangeStore lists signals by creation time.
type SignalRangeStore interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Signal, error)
}

// blobStore is the subset of object storage the archiver needs.
type blobStore interface {
	domain.BlobWriter
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver implements domain.SignalArchiver. Each UTC day of signals becomes
// one JSONL object at YYYY/MM/DD.jsonl. Signals are immutable, so a day that
// was already archived is left untouched. Nothing is deleted from Postgres.
type Archiver struct {
	blobs   blobStore
	signals SignalRangeStore
	audit   domain.AuditStore
}

// NewArchiver creates an Archiver.
func NewArchiver(blobs blobStore, signals SignalRangeStore, audit domain.AuditStore) *Archiver {
	return &Archiver{blobs: blobs, signals: signals, audit: audit}
}

// ArchiveDay uploads the signals created on day (UTC) and returns how many
// were written. It returns 0 when the day is empty or already archived.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (int64, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	path := ArchivePath(from)

	exists, err := a.blobs.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", path, err)
	}
	if exists {
		return 0, nil
	}

	signals, err := a.signals.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query %s: %w", from.Format(time.DateOnly), err)
	}
	if len(signals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(signals)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	if len(buf) > multipartThreshold {
		err = a.blobs.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.blobs.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	count := int64(len(signals))
	if err := a.audit.Log(ctx, "archive.signals", map[string]any{
		"path":  path,
		"count": count,
		"day":   from.Format(time.DateOnly),
		"bytes": len(buf),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return count, nil
}

// ArchivePath is the object path of a day's archive, e.g. 2026/03/01.jsonl.
func ArchivePath(day time.Time) string {
	return day.UTC().Format("2006/01/02") + ".jsonl"
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.SignalArchiver = (*Archiver)(nil)
