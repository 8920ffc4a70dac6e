package oracle

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// Input is everything the oracle is told about one decision.
type Input struct {
	Event       domain.Event
	Token       string
	Side        domain.Side
	AgentClass  domain.AgentClass
	Score       domain.CompositeScore
	Preferences domain.Preferences
	Account     domain.AccountSnapshot
	MaxLeverage int
}

// Request is the wire shape sent to the oracle.
type Request struct {
	Instructions   string         `json:"instructions"`
	Input          string         `json:"input"`
	ResponseSchema map[string]any `json:"responseSchema"`
}

const instructions = `You are the trade decision layer of an automated perpetuals agent.
Given a classified social signal, a quantitative market score, the user's
trading preferences and their live account state, decide whether to open a new
position, close existing positions, or do nothing.
Answer with a single JSON object matching the response schema and nothing else.
Only reference position ids that appear in the account state.
If fundAllocationPct is 0, shouldOpenNewPosition must be false.`

// responseSchema is the JSON schema the oracle's answer must satisfy.
var responseSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"shouldOpenNewPosition", "closePositionIds", "fundAllocationPct", "leverage", "netChange", "rationale"},
	"properties": map[string]any{
		"shouldOpenNewPosition": map[string]any{"type": "boolean"},
		"closePositionIds":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"fundAllocationPct":     map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		"leverage":              map[string]any{"type": "number", "minimum": 1, "maximum": domain.MaxLeverageCap},
		"netChange":             map[string]any{"type": "string", "enum": []string{"OPEN", "CLOSE", "FLIP", "NONE"}},
		"rationale":             map[string]any{"type": "string"},
	},
}

// BuildRequest renders in into an oracle request.
func BuildRequest(in Input) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "## Signal\nToken: %s\n", in.Token)
	if in.Event.CloseIntent {
		b.WriteString("Intent: explicit exit call on this token\n")
	} else if in.Side != "" {
		fmt.Fprintf(&b, "Direction: %s\n", in.Side)
	}
	fmt.Fprintf(&b, "Post: %q\n\n", strings.TrimSpace(in.Event.Text))

	fmt.Fprintf(&b, "## Confidence\n%.2f. %s\n\n", in.Event.Confidence, confidenceFraming(in.AgentClass, in.Event.Confidence))

	fmt.Fprintf(&b, "## Source impact\n%s\n\n", ImpactTier(in.Event.ImpactFactor))

	s := in.Score
	fmt.Fprintf(&b, "## Market score\nfinal %.3f (%s), suggested size %.2f%% of balance\n", s.Final, s.Tier, s.PositionSizePct)
	fmt.Fprintf(&b, "quality %.2f, sentiment %.2f, social growth %.2f, momentum %.2f, rank %.2f\n\n",
		s.Quality, s.Sentiment, s.SocialGrowth, s.Momentum, s.Rank)

	b.WriteString("## User preferences\n")
	b.WriteString(PreferenceBands(in.Preferences))
	b.WriteString("\n")

	b.WriteString("## Account\n")
	if in.Account.Degraded {
		b.WriteString("Account state unavailable; treat balance as 0 and assume no open positions.\n")
	}
	fmt.Fprintf(&b, "Balance: %.2f USD\nMax leverage for %s on %s: %dx\n", in.Account.Balance, in.Token, in.Account.Venue, in.MaxLeverage)
	if len(in.Account.Positions) == 0 {
		b.WriteString("Open positions: none\n")
	} else {
		b.WriteString("Open positions:\n")
		for _, p := range in.Account.Positions {
			fmt.Fprintf(&b, "- id=%s %s %s collateral=%.2f entry=%.6g leverage=%.1fx notional=%.2f%s\n",
				p.ID, p.Token, p.Side, p.Collateral, p.EntryPrice, p.Leverage, p.Notional, riskLevels(p))
		}
	}

	return Request{
		Instructions:   instructions,
		Input:          b.String(),
		ResponseSchema: responseSchema,
	}
}

func riskLevels(p domain.OpenPosition) string {
	var parts []string
	if p.TakeProfit != nil {
		parts = append(parts, fmt.Sprintf(" tp=%.6g", *p.TakeProfit))
	}
	if p.StopLoss != nil {
		parts = append(parts, fmt.Sprintf(" sl=%.6g", *p.StopLoss))
	}
	return strings.Join(parts, "")
}

func confidenceFraming(class domain.AgentClass, confidence float64) string {
	if class == domain.AgentClassLowConfidenceTolerant {
		return "This agent is built to act on early, low-confidence calls. Low confidence should shrink size, not veto the trade."
	}
	if confidence < 0.6 {
		return "This agent only acts on high-conviction calls. Confidence is below its bar; prefer no new position."
	}
	return "This agent only acts on high-conviction calls. Confidence clears its bar."
}

// ImpactTier describes a source impact factor in words.
func ImpactTier(factor int) string {
	switch {
	case factor >= 80:
		return "Excellent: this source's calls have historically been highly profitable."
	case factor >= 60:
		return "High: this source's calls have historically been profitable."
	case factor >= 40:
		return "Neutral: this source has no meaningful track record either way."
	case factor >= 20:
		return "Low: this source's calls have historically underperformed."
	default:
		return "Very poor: this source's calls have historically lost money."
	}
}

// PreferenceBands renders the preference vector as qualitative bands only,
// so raw numbers never appear in the oracle's rationale.
func PreferenceBands(p domain.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk tolerance: %s\n", band(p.RiskTolerance))
	fmt.Fprintf(&b, "Trade frequency: %s\n", band(p.TradeFrequency))
	fmt.Fprintf(&b, "Weight on social sentiment: %s\n", band(p.SentimentWeight))
	fmt.Fprintf(&b, "Focus on price momentum: %s\n", band(p.MomentumFocus))
	fmt.Fprintf(&b, "Preference for top-ranked assets: %s\n", band(p.RankPriority))
	b.WriteString("Refer to these preferences only in words.\n")
	return b.String()
}

func band(v int) string {
	switch {
	case v <= 20:
		return "very low"
	case v <= 40:
		return "low"
	case v <= 60:
		return "moderate"
	case v <= 80:
		return "high"
	default:
		return "very high"
	}
}
