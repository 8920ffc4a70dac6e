// Package oracle asks the external decision oracle whether to trade and turns
// its answer into a validated, bounded, position-consistent TradeDecision.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// Client sends one request to the oracle and returns the raw response body.
type Client interface {
	Complete(ctx context.Context, req Request) ([]byte, error)
}

// Outcome is the result of one oracle consultation. Failure is empty when the
// oracle answered usefully; otherwise Decision is the conservative fallback.
type Outcome struct {
	Decision domain.TradeDecision
	Failure  domain.OracleFailure
	Err      error
}

// Fallback reports whether the decision is the conservative default.
func (o Outcome) Fallback() bool { return o.Failure != domain.OracleOK }

// Adapter wraps a Client. It never retries; retries belong to the queue.
type Adapter struct {
	client      Client
	logger      *slog.Logger
	maxLogBytes int
}

// NewAdapter creates an Adapter. client may be nil, in which case every
// decision falls back with reason not_configured.
func NewAdapter(client Client, maxLogBytes int, logger *slog.Logger) *Adapter {
	if maxLogBytes <= 0 {
		maxLogBytes = 2048
	}
	return &Adapter{
		client:      client,
		logger:      logger.With(slog.String("component", "oracle")),
		maxLogBytes: maxLogBytes,
	}
}

// Decide consults the oracle for in.
func (a *Adapter) Decide(ctx context.Context, in Input) Outcome {
	if a.client == nil {
		return a.fallback(ctx, in, domain.OracleNotConfigured, domain.ErrNotConfigured)
	}

	body, err := a.client.Complete(ctx, BuildRequest(in))
	if err != nil {
		return a.fallback(ctx, in, classify(err), err)
	}

	d, err := parseDecision(body)
	if err != nil {
		var pe *parseError
		kind := domain.OracleMalformedResponse
		if errors.As(err, &pe) {
			kind = pe.kind
		}
		a.logger.WarnContext(ctx, "oracle response rejected",
			slog.String("token", in.Token),
			slog.String("failure", string(kind)),
			slog.String("error", err.Error()),
			slog.String("body", truncate(body, a.maxLogBytes)),
		)
		return a.fallback(ctx, in, kind, err)
	}

	held := in.Account.PositionsFor(in.Token)
	claimed := d.NetChange
	d = clamp(d, in.MaxLeverage, held)
	d = Reconcile(d, in.Side, in.Event.CloseIntent, held)
	if claimed != d.NetChange {
		a.logger.InfoContext(ctx, "oracle net change overridden",
			slog.String("token", in.Token),
			slog.String("claimed", string(claimed)),
			slog.String("derived", string(d.NetChange)),
		)
	}
	return Outcome{Decision: d}
}

func (a *Adapter) fallback(ctx context.Context, in Input, kind domain.OracleFailure, err error) Outcome {
	if kind != domain.OracleNotConfigured {
		a.logger.WarnContext(ctx, "oracle fallback",
			slog.String("token", in.Token),
			slog.String("failure", string(kind)),
			slog.String("error", err.Error()),
		)
	}
	return Outcome{
		Decision: FallbackDecision(kind),
		Failure:  kind,
		Err:      err,
	}
}

// FallbackDecision is the conservative decision used when the oracle fails.
func FallbackDecision(kind domain.OracleFailure) domain.TradeDecision {
	return domain.TradeDecision{
		ShouldOpenNewPosition: false,
		ClosePositionIDs:      []string{},
		FundAllocationPct:     0,
		Leverage:              1,
		NetChange:             domain.NetChangeNone,
		Rationale:             fmt.Sprintf("Decision oracle unavailable (%s); no position opened.", kind),
	}
}

func classify(err error) domain.OracleFailure {
	if errors.Is(err, domain.ErrNotConfigured) {
		return domain.OracleNotConfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.OracleTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.OracleTimeout
	}
	return domain.OracleTransport
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
