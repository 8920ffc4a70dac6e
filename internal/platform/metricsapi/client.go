// Package metricsapi fetches per-token market metrics (quality, sentiment,
// social growth, momentum, rank) from the metrics service.
package metricsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// Client is the REST client for the metrics service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client.
func NewClient(baseURL, apiKey string, timeout time.Duration, requestsPerSec float64) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

type metricsResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Metrics *struct {
		Quality      decimal.NullDecimal `json:"quality"`
		Sentiment    decimal.NullDecimal `json:"sentiment"`
		SocialGrowth decimal.NullDecimal `json:"socialGrowth"`
		Momentum     decimal.NullDecimal `json:"momentum"`
		Rank         decimal.NullDecimal `json:"rank"`
	} `json:"metrics"`
}

// Fetch returns the metrics for token.
func (c *Client) Fetch(ctx context.Context, token string) (domain.MarketMetrics, error) {
	if c.baseURL == "" {
		return domain.MarketMetrics{}, domain.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: throttle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics/"+url.PathEscape(token), nil)
	if err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: %s: %w", token, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var mr metricsResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: decode: %w", err)
	}
	if (mr.Success != nil && !*mr.Success) || mr.Metrics == nil {
		return domain.MarketMetrics{}, fmt.Errorf("metricsapi: %s: service error: %s", token, mr.Error)
	}

	m := mr.Metrics
	return domain.MarketMetrics{
		Token:        token,
		Quality:      m.Quality.Decimal.InexactFloat64(),
		Sentiment:    m.Sentiment.Decimal.InexactFloat64(),
		SocialGrowth: m.SocialGrowth.Decimal.InexactFloat64(),
		Momentum:     m.Momentum.Decimal.InexactFloat64(),
		Rank:         int(m.Rank.Decimal.IntPart()),
		Available:    true,
	}, nil
}

// Fetcher is the raw metrics lookup.
type Fetcher interface {
	Fetch(ctx context.Context, token string) (domain.MarketMetrics, error)
}

// Provider serves metrics through a cache and reports unavailable metrics on
// any failure instead of an error.
type Provider struct {
	fetcher Fetcher
	cache   domain.MetricsCache
	logger  *slog.Logger
}

// NewProvider creates a Provider. cache may be nil.
func NewProvider(fetcher Fetcher, cache domain.MetricsCache, logger *slog.Logger) *Provider {
	return &Provider{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger.With(slog.String("component", "metrics")),
	}
}

// Metrics returns the metrics for token. On failure the result has
// Available=false and the scoring engine treats every metric as neutral.
func (p *Provider) Metrics(ctx context.Context, token string) domain.MarketMetrics {
	token = domain.NormalizeToken(token)
	if p.cache != nil {
		if m, err := p.cache.GetMetrics(ctx, token); err == nil {
			return m
		}
	}

	m, err := p.fetcher.Fetch(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotConfigured) {
			p.logger.WarnContext(ctx, "metrics unavailable",
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
		}
		return domain.MarketMetrics{Token: token}
	}

	if p.cache != nil {
		if err := p.cache.SetMetrics(ctx, m); err != nil {
			p.logger.DebugContext(ctx, "metrics cache write failed", slog.String("error", err.Error()))
		}
	}
	return m
}
