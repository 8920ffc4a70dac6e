// Package venueapi is the HTTP client for the per-venue balance and position
// services.
package venueapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds how much of a venue response is read.
const maxBodyBytes = 1 << 20

// Client talks to one venue service.
type Client struct {
	venue      domain.Venue
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client for venue at baseURL. requestsPerSec and burst
// configure client-side throttling.
func NewClient(venue domain.Venue, baseURL string, timeout time.Duration, requestsPerSec float64, burst int) *Client {
	if burst < 1 {
		burst = 1
	}
	return &Client{
		venue:   venue,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
	}
}

// Venue returns the venue this client serves.
func (c *Client) Venue() domain.Venue { return c.venue }

// Balance returns the withdrawable USD balance of wallet.
func (c *Client) Balance(ctx context.Context, wallet string) (float64, error) {
	var resp balanceResponse
	if err := c.post(ctx, "/balance", wallet, &resp); err != nil {
		return 0, fmt.Errorf("venueapi: %s balance: %w", c.venue, err)
	}
	if resp.Success != nil && !*resp.Success {
		return 0, fmt.Errorf("venueapi: %s balance: service error: %s", c.venue, resp.Error)
	}
	amt, ok := resp.amount()
	if !ok {
		return 0, fmt.Errorf("venueapi: %s balance: response has no balance field", c.venue)
	}
	return amt.InexactFloat64(), nil
}

// Positions returns the open positions of wallet.
func (c *Client) Positions(ctx context.Context, wallet string) ([]domain.OpenPosition, error) {
	var resp positionsResponse
	if err := c.post(ctx, "/positions", wallet, &resp); err != nil {
		return nil, fmt.Errorf("venueapi: %s positions: %w", c.venue, err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("venueapi: %s positions: service error: %s", c.venue, resp.Error)
	}

	out := make([]domain.OpenPosition, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		if pos, ok := p.toDomain(); ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

// ChecksumAddress validates wallet and returns its EIP-55 form.
func ChecksumAddress(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, wallet)
	}
	return common.HexToAddress(wallet).Hex(), nil
}

func (c *Client) post(ctx context.Context, path, wallet string, out any) error {
	if c.baseURL == "" {
		return domain.ErrNotConfigured
	}
	addr, err := ChecksumAddress(wallet)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}

	payload, err := json.Marshal(addressRequest{Address: addr})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Registry maps venues to their clients.
type Registry struct {
	clients map[domain.Venue]*Client
}

// NewRegistry creates a Registry from clients.
func NewRegistry(clients ...*Client) *Registry {
	r := &Registry{clients: make(map[domain.Venue]*Client, len(clients))}
	for _, c := range clients {
		r.clients[c.venue] = c
	}
	return r
}

// Get returns the client for v.
func (r *Registry) Get(v domain.Venue) (*Client, error) {
	c, ok := r.clients[v]
	if !ok {
		return nil, fmt.Errorf("venueapi: %w: %s", domain.ErrUnknownVenue, v)
	}
	return c, nil
}

// Balance implements the gateway's account source.
func (r *Registry) Balance(ctx context.Context, v domain.Venue, wallet string) (float64, error) {
	c, err := r.Get(v)
	if err != nil {
		return 0, err
	}
	return c.Balance(ctx, wallet)
}

// Positions implements the gateway's account source.
func (r *Registry) Positions(ctx context.Context, v domain.Venue, wallet string) ([]domain.OpenPosition, error) {
	c, err := r.Get(v)
	if err != nil {
		return nil, err
	}
	return c.Positions(ctx, wallet)
}

// IsInvalidAddress reports whether err stems from a malformed wallet address.
func IsInvalidAddress(err error) bool {
	return errors.Is(err, domain.ErrInvalidAddress)
}
