package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the long-lived engine loops. A nil component is not run,
// which is how process modes select their share of the work.
type Orchestrator struct {
	trigger         *Trigger
	pool            *WorkerPool
	archiver        *Archiver
	triggerInterval time.Duration
	archiveCron     string
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator. trigger, pool and archiver may be nil.
func NewOrchestrator(
	trigger *Trigger,
	pool *WorkerPool,
	archiver *Archiver,
	triggerInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		trigger:         trigger,
		pool:            pool,
		archiver:        archiver,
		triggerInterval: triggerInterval,
		archiveCron:     archiveCron,
		logger:          logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts every configured loop under one errgroup. A loop that exits with
// a non-context error stops the others and Run returns it.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Bool("trigger", o.trigger != nil),
		slog.Bool("workers", o.pool != nil),
		slog.Bool("archiver", o.archiver != nil),
		slog.Duration("trigger_interval", o.triggerInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.trigger != nil {
		g.Go(func() error {
			return loopErr(ctx, "trigger", o.trigger.RunLoop(ctx, o.triggerInterval))
		})
	}
	if o.pool != nil {
		g.Go(func() error {
			return loopErr(ctx, "worker pool", o.pool.Run(ctx))
		})
	}
	if o.archiver != nil {
		g.Go(func() error {
			return loopErr(ctx, "archiver", o.archiver.RunCron(ctx, o.archiveCron))
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// loopErr maps a loop's exit to the errgroup result: nil on shutdown.
func loopErr(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil || err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
