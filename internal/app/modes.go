package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/alphasignal/internal/dedup"
	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/gateway"
	"github.com/alanyoungcy/alphasignal/internal/oracle"
	"github.com/alanyoungcy/alphasignal/internal/pipeline"
	"github.com/alanyoungcy/alphasignal/internal/platform/metricsapi"
	"github.com/alanyoungcy/alphasignal/internal/platform/oracleapi"
	"github.com/alanyoungcy/alphasignal/internal/platform/venueapi"
	"github.com/alanyoungcy/alphasignal/internal/scoring"
	"github.com/alanyoungcy/alphasignal/internal/server"
	"github.com/alanyoungcy/alphasignal/internal/server/handler"
	"github.com/alanyoungcy/alphasignal/internal/server/ws"
	"github.com/alanyoungcy/alphasignal/internal/service"
	"github.com/alanyoungcy/alphasignal/internal/venue"
)

const shutdownTimeout = 10 * time.Second

// WorkerMode consumes jobs from the queue.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")
	return pipeline.NewOrchestrator(nil, a.newWorkerPool(deps), nil, 0, "", a.logger).Run(ctx)
}

// TriggerMode scans for pending events and, when enabled, runs the archive.
func (a *App) TriggerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trigger mode")
	return pipeline.NewOrchestrator(
		a.newTrigger(deps), nil, a.newArchiver(deps),
		a.cfg.Engine.TriggerInterval.Duration, a.cfg.Archive.Cron, a.logger,
	).Run(ctx)
}

// ServerMode serves the HTTP API and the live signal stream only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.serve(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// FullMode runs trigger, workers, archive and, when enabled, the server in
// one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)

	orch := pipeline.NewOrchestrator(
		a.newTrigger(deps), a.newWorkerPool(deps), a.newArchiver(deps),
		a.cfg.Engine.TriggerInterval.Duration, a.cfg.Archive.Cron, a.logger,
	)
	g.Go(func() error { return orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.serve(ctx, g, deps)
	}
	return ignoreCanceled(g.Wait())
}

func (a *App) newTrigger(deps *Dependencies) *pipeline.Trigger {
	return pipeline.NewTrigger(
		deps.Events, deps.Agents, deps.Deployments, deps.Queue, deps.Locks,
		a.cfg.Engine.TriggerBatchSize, a.logger,
	)
}

func (a *App) newArchiver(deps *Dependencies) *pipeline.Archiver {
	if deps.Archiver == nil {
		return nil
	}
	return pipeline.NewArchiver(deps.Archiver, a.logger)
}

// newWorkerPool assembles the decision pipeline behind the queue consumers.
func (a *App) newWorkerPool(deps *Dependencies) *pipeline.WorkerPool {
	ec := a.cfg.Engine
	return pipeline.NewWorkerPool(deps.Queue, a.newProcessor(deps), pipeline.WorkerPoolConfig{
		Workers:      ec.WorkerCount,
		Concurrency:  ec.WorkerConcurrency,
		MaxAttempts:  ec.MaxAttempts,
		RetryBackoff: ec.RetryBackoff.Duration,
	}, a.logger)
}

func (a *App) newProcessor(deps *Dependencies) *pipeline.Processor {
	vc := a.cfg.Venues
	venues := venueapi.NewRegistry(
		venueapi.NewClient(domain.VenueHyperliquid, vc.HyperliquidURL, vc.Timeout.Duration, vc.RequestsPerSec, vc.Burst),
		venueapi.NewClient(domain.VenueOstium, vc.OstiumURL, vc.Timeout.Duration, vc.RequestsPerSec, vc.Burst),
		venueapi.NewClient(domain.VenueAster, vc.AsterURL, vc.Timeout.Duration, vc.RequestsPerSec, vc.Burst),
	)

	mc := a.cfg.Metrics
	metrics := metricsapi.NewProvider(
		metricsapi.NewClient(mc.BaseURL, mc.APIKey, mc.Timeout.Duration, mc.RequestsPerSec),
		deps.MetricsCache, a.logger,
	)

	oc := a.cfg.Oracle
	var client oracle.Client
	if oc.Endpoint != "" {
		client = oracleapi.New(oracleapi.Config{
			Endpoint:   oc.Endpoint,
			APIKey:     oc.APIKey,
			Model:      oc.Model,
			Timeout:    oc.Timeout.Duration,
			RateLimit:  oc.RateLimit,
			RateWindow: oc.RateWindow.Duration,
		}, deps.RateLimiter)
	} else {
		a.logger.Warn("oracle endpoint not configured; every decision falls back")
	}

	return pipeline.NewProcessor(pipeline.ProcessorDeps{
		Events:       deps.Events,
		Agents:       deps.Agents,
		Deployments:  deps.Deployments,
		Quotas:       deps.Quotas,
		Audit:        deps.Audit,
		Guard:        dedup.NewGuard(deps.Locks, a.cfg.Engine.LockTTL.Duration),
		Window:       dedup.NewWindow(deps.Signals, a.cfg.Engine.DedupWindow()),
		Resolver:     venue.NewResolver(venue.NewCachedDirectory(deps.VenueMarkets, deps.MarketCache, a.logger), a.logger),
		Accounts:     gateway.New(venues, a.logger),
		Metrics:      metrics,
		Scorer:       scoring.New(scoring.DefaultWeights()),
		Oracle:       oracle.NewAdapter(client, oc.MaxResponseLogB, a.logger),
		Signals:      deps.SignalService,
		DefaultQuota: a.cfg.Engine.DefaultQuota,
	}, a.logger)
}

// serve starts the WS hub and HTTP server on g and shuts the server down
// when ctx ends.
func (a *App) serve(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.Bus, deps.SignalService, ws.Config{
		Channels:  []string{service.SignalChannel},
		Mode:      a.cfg.Mode,
		StartedAt: a.startedAt,
	}, a.logger)

	critical := map[string]handler.CheckFunc{
		"postgres": withTimeout(deps.Postgres.Ping),
		"redis":    withTimeout(deps.Redis.Ping),
	}
	optional := map[string]handler.CheckFunc{}
	if deps.S3 != nil {
		optional["s3"] = withTimeout(deps.S3.Health)
	}
	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.Queue, critical, optional, a.logger),
		Status:       handler.NewStatusHandler(a.cfg.Mode, Version, a.startedAt),
		Signals:      handler.NewSignalHandler(deps.SignalService, a.logger),
		Trigger:      handler.NewTriggerHandler(a.newTrigger(deps), a.logger),
		VenueMarkets: handler.NewVenueMarketHandler(deps.VenueMarkets, a.logger),
		Audit:        handler.NewAuditHandler(deps.Audit, a.logger),
	}
	if deps.Blobs != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.Blobs, a.logger)
	}

	sc := a.cfg.Server
	srv := server.NewServer(server.Config{
		Port:           sc.Port,
		CORSOrigins:    sc.CORSOrigins,
		APIKey:         sc.APIKey,
		RateLimitPerIP: sc.RateLimitPerIP,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
