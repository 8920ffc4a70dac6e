package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ALPHASIGNAL_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the engine can be
// configured purely from the environment. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ALPHASIGNAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "ALPHASIGNAL_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ALPHASIGNAL_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ALPHASIGNAL_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ALPHASIGNAL_DATABASE_NAME")
	setStr(&cfg.Database.User, "ALPHASIGNAL_DATABASE_USER")
	setStr(&cfg.Database.Password, "ALPHASIGNAL_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ALPHASIGNAL_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ALPHASIGNAL_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ALPHASIGNAL_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ALPHASIGNAL_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ALPHASIGNAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ALPHASIGNAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ALPHASIGNAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ALPHASIGNAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ALPHASIGNAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ALPHASIGNAL_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "ALPHASIGNAL_REDIS_CACHE_TTL_MINUTES")
	setInt64(&cfg.Redis.StreamMaxLen, "ALPHASIGNAL_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ALPHASIGNAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ALPHASIGNAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "ALPHASIGNAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ALPHASIGNAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ALPHASIGNAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ALPHASIGNAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ALPHASIGNAL_S3_FORCE_PATH_STYLE")

	// ── Venues ──
	setStr(&cfg.Venues.HyperliquidURL, "ALPHASIGNAL_VENUES_HYPERLIQUID_URL")
	setStr(&cfg.Venues.OstiumURL, "ALPHASIGNAL_VENUES_OSTIUM_URL")
	setStr(&cfg.Venues.AsterURL, "ALPHASIGNAL_VENUES_ASTER_URL")
	setDuration(&cfg.Venues.Timeout, "ALPHASIGNAL_VENUES_TIMEOUT")
	setFloat64(&cfg.Venues.RequestsPerSec, "ALPHASIGNAL_VENUES_REQUESTS_PER_SEC")
	setInt(&cfg.Venues.Burst, "ALPHASIGNAL_VENUES_BURST")
	setDuration(&cfg.Venues.MarketsCacheTTL, "ALPHASIGNAL_VENUES_MARKETS_CACHE_TTL")

	// ── Oracle ──
	setStr(&cfg.Oracle.Endpoint, "ALPHASIGNAL_ORACLE_ENDPOINT")
	setStr(&cfg.Oracle.APIKey, "ALPHASIGNAL_ORACLE_API_KEY")
	setStr(&cfg.Oracle.Model, "ALPHASIGNAL_ORACLE_MODEL")
	setDuration(&cfg.Oracle.Timeout, "ALPHASIGNAL_ORACLE_TIMEOUT")
	setInt(&cfg.Oracle.RateLimit, "ALPHASIGNAL_ORACLE_RATE_LIMIT")
	setDuration(&cfg.Oracle.RateWindow, "ALPHASIGNAL_ORACLE_RATE_WINDOW")

	// ── Metrics ──
	setStr(&cfg.Metrics.BaseURL, "ALPHASIGNAL_METRICS_BASE_URL")
	setStr(&cfg.Metrics.APIKey, "ALPHASIGNAL_METRICS_API_KEY")
	setDuration(&cfg.Metrics.Timeout, "ALPHASIGNAL_METRICS_TIMEOUT")
	setDuration(&cfg.Metrics.CacheTTL, "ALPHASIGNAL_METRICS_CACHE_TTL")
	setFloat64(&cfg.Metrics.RequestsPerSec, "ALPHASIGNAL_METRICS_REQUESTS_PER_SEC")

	// ── Engine ──
	setInt(&cfg.Engine.DedupWindowHours, "ALPHASIGNAL_DEDUP_WINDOW_HOURS")
	setDuration(&cfg.Engine.LockTTL, "ALPHASIGNAL_LOCK_TTL")
	setInt(&cfg.Engine.WorkerCount, "ALPHASIGNAL_WORKER_COUNT")
	setInt(&cfg.Engine.WorkerConcurrency, "ALPHASIGNAL_WORKER_CONCURRENCY")
	setDuration(&cfg.Engine.TriggerInterval, "ALPHASIGNAL_TRIGGER_INTERVAL")
	setInt(&cfg.Engine.TriggerBatchSize, "ALPHASIGNAL_TRIGGER_BATCH_SIZE")
	setInt(&cfg.Engine.MaxAttempts, "ALPHASIGNAL_MAX_ATTEMPTS")
	setDuration(&cfg.Engine.RetryBackoff, "ALPHASIGNAL_RETRY_BACKOFF")
	setDuration(&cfg.Engine.VisibilityTimeout, "ALPHASIGNAL_VISIBILITY_TIMEOUT")
	setInt(&cfg.Engine.DefaultQuota, "ALPHASIGNAL_DEFAULT_QUOTA")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ALPHASIGNAL_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ALPHASIGNAL_ARCHIVE_CRON")
	setStr(&cfg.Archive.Prefix, "ALPHASIGNAL_ARCHIVE_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ALPHASIGNAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ALPHASIGNAL_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ALPHASIGNAL_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ALPHASIGNAL_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerIP, "ALPHASIGNAL_SERVER_RATE_LIMIT_PER_IP")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ALPHASIGNAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ALPHASIGNAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ALPHASIGNAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ALPHASIGNAL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ALPHASIGNAL_MODE")
	setStr(&cfg.LogLevel, "ALPHASIGNAL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
