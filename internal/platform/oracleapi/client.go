// Package oracleapi is the HTTP transport for the decision oracle.
package oracleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/oracle"
)

const maxBodyBytes = 1 << 20

// rateKey is the shared limiter key so every worker process draws from one
// oracle budget.
const rateKey = "oracle"

// Config configures the oracle client.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RateLimit  int
	RateWindow time.Duration
}

// Client posts decision requests to the oracle endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// New creates a Client. limiter may be nil to disable shared rate limiting.
func New(cfg Config, limiter domain.RateLimiter) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}
}

type wireRequest struct {
	Model string `json:"model,omitempty"`
	oracle.Request
}

// envelope is the optional wrapper some deployments put around the answer.
type envelope struct {
	Output json.RawMessage `json:"output"`
}

// Complete sends req and returns the decision document.
func (c *Client) Complete(ctx context.Context, req oracle.Request) ([]byte, error) {
	if c.cfg.Endpoint == "" {
		return nil, domain.ErrNotConfigured
	}
	if c.limiter != nil && c.cfg.RateLimit > 0 {
		if err := c.limiter.Wait(ctx, rateKey, c.cfg.RateLimit, c.cfg.RateWindow); err != nil {
			return nil, fmt.Errorf("oracleapi: %w", err)
		}
	}

	payload, err := json.Marshal(wireRequest{Model: c.cfg.Model, Request: req})
	if err != nil {
		return nil, fmt.Errorf("oracleapi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("oracleapi: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracleapi: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("oracleapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oracleapi: HTTP %d: %s", resp.StatusCode, truncate(body, 512))
	}
	return unwrap(body), nil
}

// unwrap returns the "output" member of an envelope, decoding it if it is a
// JSON string. Bodies without an envelope are returned unchanged.
func unwrap(body []byte) []byte {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Output) == 0 {
		return body
	}
	var s string
	if err := json.Unmarshal(env.Output, &s); err == nil {
		return []byte(s)
	}
	return env.Output
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

var _ oracle.Client = (*Client)(nil)
