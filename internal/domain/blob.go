package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes an archived object. Path is relative to the archive
// prefix, e.g. "2026/03/07.jsonl".
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads archive objects. PutMultipart is for days large enough
// to need a multipart upload.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader inspects the archive.
type BlobReader interface {
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SignalArchiver copies one UTC day of signals to cold storage and reports
// how many it wrote.
type SignalArchiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (int64, error)
}
