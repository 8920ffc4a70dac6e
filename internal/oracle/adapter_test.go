package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	body []byte
	err  error
	reqs []Request
}

func (s *stubClient) Complete(_ context.Context, req Request) ([]byte, error) {
	s.reqs = append(s.reqs, req)
	return s.body, s.err
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func baseInput() Input {
	return Input{
		Event: domain.Event{
			ID: "evt-1", Text: "$BTC breaking out, long here", Direction: domain.DirectionLong,
			Confidence: 0.8, ImpactFactor: 72,
		},
		Token:       "BTC",
		Side:        domain.SideLong,
		AgentClass:  domain.AgentClassConfidenceCritical,
		Score:       domain.CompositeScore{Final: 0.55, PositionSizePct: 3.8, Tier: domain.TierModerate},
		Preferences: domain.DefaultPreferences(),
		Account:     domain.AccountSnapshot{Venue: domain.VenueOstium, Balance: 1000},
		MaxLeverage: 20,
	}
}

func decisionJSON(open bool, ids []string, alloc, lev float64, nc string) []byte {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return []byte(fmt.Sprintf(`{"shouldOpenNewPosition":%t,"closePositionIds":[%s],"fundAllocationPct":%g,"leverage":%g,"netChange":%q,"rationale":"ok"}`,
		open, strings.Join(quoted, ","), alloc, lev, nc))
}

func TestFallbackScenarios(t *testing.T) {
	cases := []struct {
		name   string
		client Client
		want   domain.OracleFailure
	}{
		{"not configured", nil, domain.OracleNotConfigured},
		{"transport", &stubClient{err: errors.New("connection refused")}, domain.OracleTransport},
		{"timeout", &stubClient{err: fmt.Errorf("post: %w", timeoutErr{})}, domain.OracleTimeout},
		{"deadline", &stubClient{err: context.DeadlineExceeded}, domain.OracleTimeout},
		{"empty", &stubClient{body: []byte("  \n")}, domain.OracleEmptyResponse},
		{"malformed", &stubClient{body: []byte(`{"shouldOpenNewPosition": tru`)}, domain.OracleMalformedResponse},
		{"missing field", &stubClient{body: []byte(`{"shouldOpenNewPosition":true,"closePositionIds":[],"fundAllocationPct":5,"leverage":2,"netChange":"OPEN"}`)}, domain.OracleSchemaViolation},
		{"wrong type", &stubClient{body: []byte(`{"shouldOpenNewPosition":"yes","closePositionIds":[],"fundAllocationPct":5,"leverage":2,"netChange":"OPEN","rationale":""}`)}, domain.OracleSchemaViolation},
		{"bad enum", &stubClient{body: decisionJSON(true, nil, 5, 2, "BUY")}, domain.OracleSchemaViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var client Client
			if tc.client != nil {
				client = tc.client
			}
			out := NewAdapter(client, 64, discard()).Decide(context.Background(), baseInput())

			require.True(t, out.Fallback())
			assert.Equal(t, tc.want, out.Failure)
			d := out.Decision
			assert.False(t, d.ShouldOpenNewPosition)
			assert.Zero(t, d.FundAllocationPct)
			assert.Equal(t, 1.0, d.Leverage)
			assert.Equal(t, domain.NetChangeNone, d.NetChange)
			assert.Empty(t, d.ClosePositionIDs)
			assert.Contains(t, d.Rationale, string(tc.want))
		})
	}
}

func TestAdapterCallsOracleOnce(t *testing.T) {
	stub := &stubClient{err: errors.New("503")}
	NewAdapter(stub, 0, discard()).Decide(context.Background(), baseInput())
	assert.Len(t, stub.reqs, 1)
}

func TestDecisionBoundsAreClamped(t *testing.T) {
	cases := []struct {
		alloc, lev         float64
		maxLev             int
		wantAlloc, wantLev float64
		wantOpen           bool
	}{
		{150, 80, 20, 100, 20, true},
		{-5, 0.2, 20, 0, 1, false},
		{25, 75, 0, 25, 50, true},
		{25, 75, 100, 25, 50, true},
		{0, 10, 20, 0, 1, false},
	}
	for _, tc := range cases {
		in := baseInput()
		in.MaxLeverage = tc.maxLev
		stub := &stubClient{body: decisionJSON(true, nil, tc.alloc, tc.lev, "OPEN")}
		out := NewAdapter(stub, 0, discard()).Decide(context.Background(), in)

		require.False(t, out.Fallback())
		d := out.Decision
		assert.Equal(t, tc.wantAlloc, d.FundAllocationPct)
		assert.Equal(t, tc.wantLev, d.Leverage)
		assert.Equal(t, tc.wantOpen, d.ShouldOpenNewPosition)
		if d.FundAllocationPct == 0 {
			assert.False(t, d.ShouldOpenNewPosition)
		}
	}
}

func TestUnknownCloseIDsAreDropped(t *testing.T) {
	in := baseInput()
	in.Account.Positions = []domain.OpenPosition{
		{ID: "p1", Token: "BTC", Side: domain.SideLong},
		{ID: "p9", Token: "ETH", Side: domain.SideLong},
	}
	stub := &stubClient{body: decisionJSON(false, []string{"p1", "ghost", "p9", "p1"}, 0, 1, "CLOSE")}
	out := NewAdapter(stub, 0, discard()).Decide(context.Background(), in)

	assert.Equal(t, []string{"p1"}, out.Decision.ClosePositionIDs)
	assert.Equal(t, domain.NetChangeClose, out.Decision.NetChange)
}

func TestMarkdownFencedResponseIsAccepted(t *testing.T) {
	body := append([]byte("```json\n"), decisionJSON(true, nil, 10, 3, "OPEN")...)
	body = append(body, []byte("\n```")...)
	out := NewAdapter(&stubClient{body: body}, 0, discard()).Decide(context.Background(), baseInput())
	require.False(t, out.Fallback())
	assert.Equal(t, domain.NetChangeOpen, out.Decision.NetChange)
}

func pos(id string, side domain.Side) domain.OpenPosition {
	return domain.OpenPosition{ID: id, Token: "BTC", Side: side}
}

func TestReconcileConflictTable(t *testing.T) {
	open := domain.TradeDecision{ShouldOpenNewPosition: true, FundAllocationPct: 10, Leverage: 3, NetChange: domain.NetChangeFlip}
	hold := domain.TradeDecision{NetChange: domain.NetChangeOpen}

	cases := []struct {
		name      string
		d         domain.TradeDecision
		side      domain.Side
		close     bool
		positions []domain.OpenPosition
		want      domain.NetChange
		wantIDs   []string
	}{
		{"no position open", open, domain.SideLong, false, nil, domain.NetChangeOpen, nil},
		{"same side open never flips", open, domain.SideLong, false, []domain.OpenPosition{pos("a", domain.SideLong)}, domain.NetChangeOpen, nil},
		{"same side hold", hold, domain.SideLong, false, []domain.OpenPosition{pos("a", domain.SideLong)}, domain.NetChangeNone, nil},
		{"opposite side open flips", open, domain.SideShort, false, []domain.OpenPosition{pos("a", domain.SideLong), pos("b", domain.SideLong)}, domain.NetChangeFlip, []string{"a", "b"}},
		{"close event closes everything", hold, domain.SideLong, true, []domain.OpenPosition{pos("a", domain.SideLong), pos("b", domain.SideShort)}, domain.NetChangeClose, []string{"a", "b"}},
		{"close event opens nothing", open, domain.SideLong, true, []domain.OpenPosition{pos("a", domain.SideLong)}, domain.NetChangeClose, []string{"a"}},
		{"close event without positions", hold, "", true, nil, domain.NetChangeNone, nil},
		{"explicit close ids", domain.TradeDecision{ClosePositionIDs: []string{"a"}}, domain.SideLong, false, []domain.OpenPosition{pos("a", domain.SideLong)}, domain.NetChangeClose, []string{"a"}},
		{"neutral cannot open", open, "", false, nil, domain.NetChangeNone, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reconcile(tc.d, tc.side, tc.close, tc.positions)
			assert.Equal(t, tc.want, got.NetChange)
			assert.ElementsMatch(t, tc.wantIDs, got.ClosePositionIDs)
			if tc.close {
				assert.False(t, got.ShouldOpenNewPosition)
			}
			if !got.ShouldOpenNewPosition {
				assert.Zero(t, got.FundAllocationPct)
				assert.Equal(t, 1.0, got.Leverage)
			}
		})
	}
}

func TestDeclineResetsLeverage(t *testing.T) {
	stub := &stubClient{body: decisionJSON(false, nil, 0, 10, "NONE")}
	out := NewAdapter(stub, 0, discard()).Decide(context.Background(), baseInput())

	require.False(t, out.Fallback())
	assert.False(t, out.Decision.ShouldOpenNewPosition)
	assert.Zero(t, out.Decision.FundAllocationPct)
	assert.Equal(t, 1.0, out.Decision.Leverage)
}

func TestFlipKeepsOracleCloseIDs(t *testing.T) {
	in := baseInput()
	in.Side = domain.SideShort
	in.Account.Positions = []domain.OpenPosition{pos("a", domain.SideLong), pos("b", domain.SideLong)}
	stub := &stubClient{body: decisionJSON(true, []string{"b"}, 20, 5, "OPEN")}

	out := NewAdapter(stub, 0, discard()).Decide(context.Background(), in)
	assert.Equal(t, domain.NetChangeFlip, out.Decision.NetChange)
	assert.Equal(t, []string{"b", "a"}, out.Decision.ClosePositionIDs)
	assert.True(t, out.Decision.ShouldOpenNewPosition)
}

func TestImpactTiers(t *testing.T) {
	cases := map[int]string{100: "Excellent", 80: "Excellent", 79: "High", 60: "High", 59: "Neutral", 40: "Neutral", 39: "Low", 20: "Low", 19: "Very poor", 0: "Very poor"}
	for f, prefix := range cases {
		assert.True(t, strings.HasPrefix(ImpactTier(f), prefix+":"), "factor %d => %s", f, ImpactTier(f))
	}
}

func TestPreferencesNeverRenderRawValues(t *testing.T) {
	p := domain.Preferences{RiskTolerance: 73, TradeFrequency: 17, SentimentWeight: 88, MomentumFocus: 35, RankPriority: 59}
	out := PreferenceBands(p)
	for _, v := range []string{"73", "17", "88", "35", "59"} {
		assert.NotContains(t, out, v)
	}
	assert.Contains(t, out, "Risk tolerance: high")
	assert.Contains(t, out, "Trade frequency: very low")
	assert.Contains(t, out, "Weight on social sentiment: very high")
}

func TestBuildRequestIncludesPositionsAndFraming(t *testing.T) {
	in := baseInput()
	tp := 70000.0
	in.Account.Positions = []domain.OpenPosition{{ID: "t-42", Token: "BTC", Side: domain.SideShort, Collateral: 50, EntryPrice: 65000, Leverage: 5, Notional: 250, TakeProfit: &tp}}
	req := BuildRequest(in)

	assert.Contains(t, req.Input, "id=t-42")
	assert.Contains(t, req.Input, "tp=70000")
	assert.Contains(t, req.Input, "Max leverage for BTC on OSTIUM: 20x")
	assert.Contains(t, req.Input, "High:")
	assert.Contains(t, req.Input, "high-conviction")
	assert.NotEmpty(t, req.Instructions)
	assert.Contains(t, req.ResponseSchema, "required")

	in.AgentClass = domain.AgentClassLowConfidenceTolerant
	assert.Contains(t, BuildRequest(in).Input, "low-confidence calls")

	in.Account = domain.AccountSnapshot{Venue: domain.VenueOstium, Degraded: true}
	assert.Contains(t, BuildRequest(in).Input, "Account state unavailable")
}
