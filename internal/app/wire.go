package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/alphasignal/internal/blob/s3"
	"github.com/alanyoungcy/alphasignal/internal/cache/redis"
	"github.com/alanyoungcy/alphasignal/internal/config"
	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/notify"
	"github.com/alanyoungcy/alphasignal/internal/service"
	"github.com/alanyoungcy/alphasignal/internal/store/postgres"
)

// Dependencies bundles the concrete datastores and services every mode draws
// from. It is constructed by Wire and torn down by the returned cleanup.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client // nil unless the archive is enabled

	// Stores
	Events       domain.EventStore
	Agents       domain.AgentStore
	Deployments  domain.DeploymentStore
	VenueMarkets domain.VenueMarketStore
	Signals      domain.SignalStore
	Quotas       domain.QuotaStore
	Audit        domain.AuditStore

	// Redis-backed
	Queue        domain.JobQueue
	Locks        domain.LockManager
	Bus          domain.SignalBus
	RateLimiter  domain.RateLimiter
	MarketCache  domain.VenueMarketCache
	MetricsCache domain.MetricsCache

	// Object storage
	Blobs    *s3blob.Store
	Archiver domain.SignalArchiver

	Notifier      *notify.Notifier
	SignalService *service.SignalService
}

// Wire connects to Postgres and Redis (and S3 when the archive is enabled)
// and builds the stores and services on top of them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pg.Close)
	deps.Postgres = pg

	if cfg.Database.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}

	pool := pg.Pool()
	deps.Events = postgres.NewEventStore(pool)
	deps.Agents = postgres.NewAgentStore(pool)
	deps.Deployments = postgres.NewDeploymentStore(pool)
	deps.VenueMarkets = postgres.NewVenueMarketStore(pool)
	deps.Signals = postgres.NewSignalStore(pool)
	deps.Quotas = postgres.NewQuotaStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		Name:       "alphasignal-" + cfg.Mode,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = rc.Close() })
	deps.Redis = rc

	queue, err := redis.NewJobQueue(ctx, rc, redis.JobQueueOptions{
		MaxLen:            cfg.Redis.StreamMaxLen,
		VisibilityTimeout: cfg.Engine.VisibilityTimeout.Duration,
	})
	if err != nil {
		return fail("job queue", err)
	}
	deps.Queue = queue
	deps.Locks = redis.NewLockManager(rc)
	deps.Bus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)
	deps.RateLimiter = redis.NewRateLimiter(rc)
	deps.MarketCache = redis.NewVenueMarketCache(rc, cfg.Venues.MarketsCacheTTL.Duration)
	deps.MetricsCache = redis.NewMetricsCache(rc, cfg.Metrics.CacheTTL.Duration)

	// --- S3 (archive only) ---
	if cfg.Archive.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.Archive.Prefix,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.S3 = s3c
		deps.Blobs = s3blob.NewStore(s3c)
		deps.Archiver = s3blob.NewArchiver(deps.Blobs, deps.Signals, deps.Audit)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	deps.SignalService = service.NewSignalService(
		deps.Signals, deps.Bus, deps.Audit, deps.Notifier, cfg.Engine.DefaultQuota, logger,
	)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("archive", deps.Archiver != nil),
		slog.Int("notify_senders", len(senders)),
		slog.Duration("dedup_window", cfg.Engine.DedupWindow()),
	)
	return deps, cleanup, nil
}

// pingTimeout bounds each health probe.
const pingTimeout = 2 * time.Second

func withTimeout(f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return f(ctx)
	}
}
