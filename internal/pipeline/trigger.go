package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/venue"
)

const (
	scanLockKey = "trigger:scan"
	scanLockTTL = time.Minute
)

// ScanResult summarises one trigger pass.
type ScanResult struct {
	Skipped    bool `json:"skipped"`
	Events     int  `json:"events"`
	Enqueued   int  `json:"enqueued"`
	Duplicates int  `json:"duplicates"`
	Failed     int  `json:"failed"`
}

// Trigger turns pending events into one job per (event, agent, deployment,
// token). It is safe to run on several instances at once.
type Trigger struct {
	events      domain.EventStore
	agents      domain.AgentStore
	deployments domain.DeploymentStore
	queue       domain.JobQueue
	locks       domain.LockManager
	batchSize   int
	logger      *slog.Logger
}

// NewTrigger creates a Trigger that reads at most batchSize events per scan.
func NewTrigger(
	events domain.EventStore,
	agents domain.AgentStore,
	deployments domain.DeploymentStore,
	queue domain.JobQueue,
	locks domain.LockManager,
	batchSize int,
	logger *slog.Logger,
) *Trigger {
	return &Trigger{
		events:      events,
		agents:      agents,
		deployments: deployments,
		queue:       queue,
		locks:       locks,
		batchSize:   batchSize,
		logger:      logger.With(slog.String("component", "trigger")),
	}
}

// Scan runs one pass. When another instance holds the scan lock the pass is
// skipped. An event is marked processed only after all its jobs are enqueued,
// so a partial failure is picked up again on the next scan.
func (t *Trigger) Scan(ctx context.Context) (ScanResult, error) {
	unlock, err := t.locks.Acquire(ctx, scanLockKey, scanLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return ScanResult{Skipped: true}, nil
		}
		return ScanResult{}, fmt.Errorf("pipeline: scan lock: %w", err)
	}
	defer unlock()

	events, err := t.events.ListPending(ctx, t.batchSize)
	if err != nil {
		return ScanResult{}, fmt.Errorf("pipeline: list pending events: %w", err)
	}

	var res ScanResult
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Events++

		enq, dup, err := t.fanOut(ctx, e)
		res.Enqueued += enq
		res.Duplicates += dup
		if err != nil {
			res.Failed++
			t.logger.ErrorContext(ctx, "fan out event failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := t.events.MarkProcessed(ctx, e.ID); err != nil {
			t.logger.ErrorContext(ctx, "mark event processed failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if res.Events > 0 {
		t.logger.InfoContext(ctx, "scan complete",
			slog.Int("events", res.Events),
			slog.Int("enqueued", res.Enqueued),
			slog.Int("duplicates", res.Duplicates),
			slog.Int("failed", res.Failed),
		)
	}
	return res, nil
}

// fanOut enqueues the jobs of one event.
func (t *Trigger) fanOut(ctx context.Context, e domain.Event) (enqueued, duplicates int, err error) {
	tokens := tradeableTokens(e.Tokens)
	if len(tokens) == 0 || (e.Direction.Side() == "" && !e.CloseIntent) {
		return 0, 0, nil
	}

	agents, err := t.agents.ListBySource(ctx, e.SourceID)
	if err != nil {
		return 0, 0, fmt.Errorf("list agents: %w", err)
	}

	for _, a := range agents {
		deployments, err := t.deployments.ListActiveByAgent(ctx, a.ID)
		if err != nil {
			return enqueued, duplicates, fmt.Errorf("list deployments for agent %s: %w", a.ID, err)
		}
		for _, d := range deployments {
			for _, token := range tokens {
				ok, err := t.queue.Enqueue(ctx, domain.Job{
					ID:                    domain.JobID(e.ID, d.ID, token),
					Type:                  domain.JobTypeGenerateSignal,
					EventID:               e.ID,
					AgentID:               a.ID,
					DeploymentID:          d.ID,
					Token:                 token,
					LowConfidenceTolerant: ptr(a.LowConfidenceTolerant()),
					ImpactFactor:          ptr(e.ImpactFactor),
				})
				if err != nil {
					return enqueued, duplicates, err
				}
				if ok {
					enqueued++
				} else {
					duplicates++
				}
			}
		}
	}
	return enqueued, duplicates, nil
}

func ptr[T any](v T) *T { return &v }

// tradeableTokens normalises and de-duplicates tokens, dropping stablecoins.
func tradeableTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, raw := range tokens {
		t := domain.NormalizeToken(raw)
		if t == "" || seen[t] || venue.IsStablecoin(t) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// RunLoop scans immediately and then on every interval until ctx is cancelled.
func (t *Trigger) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := t.Scan(ctx); err != nil {
		t.logger.Error("scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trigger loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Scan(ctx); err != nil {
				t.logger.Error("scan failed", slog.String("error", err.Error()))
			}
		}
	}
}
