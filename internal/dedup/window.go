package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// RecentSource lists prior signals for a combination.
type RecentSource interface {
	Recent(ctx context.Context, agentID, deploymentID, token string, since time.Time) ([]domain.RecentSignal, error)
}

// Window is the single definition of "a recent signal exists".
type Window struct {
	source RecentSource
	span   time.Duration
	now    func() time.Time
}

// NewWindow creates a Window of span. A zero span disables the check.
func NewWindow(source RecentSource, span time.Duration) *Window {
	return &Window{source: source, span: span, now: time.Now}
}

// Span returns the configured lookback.
func (w *Window) Span() time.Duration { return w.span }

// Since is the oldest creation time that still counts as recent.
func (w *Window) Since() time.Time { return w.now().Add(-w.span) }

// Exists reports whether a signal for (agent, deployment, token) was created
// within the window and still counts.
func (w *Window) Exists(ctx context.Context, agentID, deploymentID, token string) (bool, error) {
	if w.span <= 0 {
		return false, nil
	}
	since := w.Since()
	recent, err := w.source.Recent(ctx, agentID, deploymentID, domain.NormalizeToken(token), since)
	if err != nil {
		return false, fmt.Errorf("dedup: recent signals: %w", err)
	}
	for _, r := range recent {
		if r.CreatedAt.Before(since) {
			continue
		}
		if FailedExecution(r.Execution) {
			continue
		}
		return true, nil
	}
	return false, nil
}

// FailedExecution reports whether the execution record shows the trade never
// actually filled: closed with zero entry price and zero quantity. Such a
// signal does not block a retry.
func FailedExecution(e *domain.Execution) bool {
	return e != nil && e.Status == domain.ExecutionClosed && e.EntryPrice == 0 && e.Quantity == 0
}
