// Package config defines the top-level configuration for the alphasignal engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ALPHASIGNAL_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Venues   VenuesConfig   `toml:"venues"`
	Oracle   OracleConfig   `toml:"oracle"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Engine   EngineConfig   `toml:"engine"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	StreamMaxLen    int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VenuesConfig holds the base URLs of the per-venue balance/positions services.
// A venue with an empty URL is treated as unreachable and always degrades.
type VenuesConfig struct {
	HyperliquidURL  string   `toml:"hyperliquid_url"`
	OstiumURL       string   `toml:"ostium_url"`
	AsterURL        string   `toml:"aster_url"`
	Timeout         duration `toml:"timeout"`
	RequestsPerSec  float64  `toml:"requests_per_sec"`
	Burst           int      `toml:"burst"`
	MarketsCacheTTL duration `toml:"markets_cache_ttl"`
}

// OracleConfig holds the decision oracle endpoint and credentials.
type OracleConfig struct {
	Endpoint        string   `toml:"endpoint"`
	APIKey          string   `toml:"api_key"`
	Model           string   `toml:"model"`
	Timeout         duration `toml:"timeout"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	MaxResponseLogB int      `toml:"max_response_log_bytes"`
}

// MetricsConfig holds the market metrics source parameters.
type MetricsConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Timeout        duration `toml:"timeout"`
	CacheTTL       duration `toml:"cache_ttl"`
	RequestsPerSec float64  `toml:"requests_per_sec"`
}

// EngineConfig holds the signal engine tuning knobs.
type EngineConfig struct {
	DedupWindowHours  int      `toml:"dedup_window_hours"`
	LockTTL           duration `toml:"lock_ttl"`
	WorkerCount       int      `toml:"worker_count"`
	WorkerConcurrency int      `toml:"worker_concurrency"`
	TriggerInterval   duration `toml:"trigger_interval"`
	TriggerBatchSize  int      `toml:"trigger_batch_size"`
	MaxAttempts       int      `toml:"max_attempts"`
	RetryBackoff      duration `toml:"retry_backoff"`
	VisibilityTimeout duration `toml:"visibility_timeout"`
	DefaultQuota      int      `toml:"default_quota"`
}

// ArchiveConfig controls the daily export of signals to object storage.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
	Prefix  string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	APIKey         string   `toml:"api_key"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitPerIP int      `toml:"rate_limit_per_ip"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DedupWindow returns the dedup lookback as a duration. Zero disables the check.
func (e EngineConfig) DedupWindow() time.Duration {
	return time.Duration(e.DedupWindowHours) * time.Hour
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "alphasignal",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 5,
			StreamMaxLen:    100_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "alphasignal-audit",
			ForcePathStyle: true,
		},
		Venues: VenuesConfig{
			HyperliquidURL:  "http://localhost:5001",
			OstiumURL:       "http://localhost:5002",
			AsterURL:        "http://localhost:5003",
			Timeout:         duration{10 * time.Second},
			RequestsPerSec:  20,
			Burst:           5,
			MarketsCacheTTL: duration{5 * time.Minute},
		},
		Oracle: OracleConfig{
			Model:           "decision-v1",
			Timeout:         duration{30 * time.Second},
			RateLimit:       60,
			RateWindow:      duration{time.Minute},
			MaxResponseLogB: 2048,
		},
		Metrics: MetricsConfig{
			Timeout:        duration{5 * time.Second},
			CacheTTL:       duration{2 * time.Minute},
			RequestsPerSec: 10,
		},
		Engine: EngineConfig{
			DedupWindowHours:  6,
			LockTTL:           duration{2 * time.Minute},
			WorkerCount:       2,
			WorkerConcurrency: 5,
			TriggerInterval:   duration{30 * time.Second},
			TriggerBatchSize:  100,
			MaxAttempts:       3,
			RetryBackoff:      duration{2 * time.Second},
			VisibilityTimeout: duration{5 * time.Minute},
			DefaultQuota:      100,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Cron:    "15 0 * * *",
			Prefix:  "signals",
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerIP: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_opened", "signal_closed", "signal_flipped", "oracle_fallback", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"worker":  true,
	"trigger": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: worker, trigger, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed when the archive runs.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if strings.TrimSpace(c.Archive.Cron) == "" {
			errs = append(errs, "archive: cron must not be empty when enabled")
		}
	}

	// Venues
	if c.Venues.Timeout.Duration <= 0 {
		errs = append(errs, "venues: timeout must be > 0")
	}
	if c.Venues.RequestsPerSec <= 0 {
		errs = append(errs, "venues: requests_per_sec must be > 0")
	}

	// Oracle. An empty endpoint is allowed: every decision falls back.
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be > 0")
	}
	if c.Oracle.Endpoint != "" && c.Oracle.APIKey == "" {
		errs = append(errs, "oracle: api_key is required when endpoint is set")
	}

	// Engine
	if c.Engine.DedupWindowHours < 0 {
		errs = append(errs, "engine: dedup_window_hours must be >= 0")
	}
	if c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be > 0")
	}
	if c.Engine.LockTTL.Duration < c.Oracle.Timeout.Duration {
		errs = append(errs, "engine: lock_ttl must cover oracle.timeout")
	}
	if c.Engine.WorkerCount < 1 {
		errs = append(errs, "engine: worker_count must be >= 1")
	}
	if c.Engine.WorkerConcurrency < 1 {
		errs = append(errs, "engine: worker_concurrency must be >= 1")
	}
	if c.Engine.TriggerInterval.Duration <= 0 {
		errs = append(errs, "engine: trigger_interval must be > 0")
	}
	if c.Engine.TriggerBatchSize < 1 {
		errs = append(errs, "engine: trigger_batch_size must be >= 1")
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, "engine: max_attempts must be >= 1")
	}
	if c.Engine.DefaultQuota < 0 {
		errs = append(errs, "engine: default_quota must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
