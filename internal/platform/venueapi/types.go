package venueapi

import (
	"strings"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/shopspring/decimal"
)

type addressRequest struct {
	Address string `json:"address"`
}

// balanceResponse covers the per-venue balance payloads. Hyperliquid reports
// "withdrawable", the others "withdrawableUsd" or "usdcBalance".
type balanceResponse struct {
	Success         *bool               `json:"success"`
	Error           string              `json:"error"`
	WithdrawableUSD decimal.NullDecimal `json:"withdrawableUsd"`
	Withdrawable    decimal.NullDecimal `json:"withdrawable"`
	USDCBalance     decimal.NullDecimal `json:"usdcBalance"`
}

func (b balanceResponse) amount() (decimal.Decimal, bool) {
	for _, d := range []decimal.NullDecimal{b.WithdrawableUSD, b.Withdrawable, b.USDCBalance} {
		if d.Valid {
			return d.Decimal, true
		}
	}
	return decimal.Zero, false
}

type positionsResponse struct {
	Success   *bool         `json:"success"`
	Error     string        `json:"error"`
	Positions []apiPosition `json:"positions"`
}

// apiPosition is the union of the venue position shapes. Ostium and Aster
// send market/side/collateral, Hyperliquid sends coin and a signed szi.
type apiPosition struct {
	TradeID         string              `json:"tradeId"`
	Market          string              `json:"market"`
	Coin            string              `json:"coin"`
	Side            string              `json:"side"`
	Collateral      decimal.NullDecimal `json:"collateral"`
	Size            decimal.NullDecimal `json:"size"`
	Szi             decimal.NullDecimal `json:"szi"`
	EntryPrice      decimal.NullDecimal `json:"entryPrice"`
	EntryPx         decimal.NullDecimal `json:"entryPx"`
	Leverage        decimal.NullDecimal `json:"leverage"`
	NotionalUSD     decimal.NullDecimal `json:"notionalUsd"`
	PositionValue   decimal.NullDecimal `json:"positionValue"`
	TakeProfitPrice decimal.NullDecimal `json:"takeProfitPrice"`
	StopLossPrice   decimal.NullDecimal `json:"stopLossPrice"`
}

func first(ds ...decimal.NullDecimal) decimal.Decimal {
	for _, d := range ds {
		if d.Valid {
			return d.Decimal
		}
	}
	return decimal.Zero
}

func optional(d decimal.NullDecimal) *float64 {
	if !d.Valid || d.Decimal.IsZero() {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

// toDomain normalizes one venue position. ok is false for entries that do
// not name a market.
func (p apiPosition) toDomain() (domain.OpenPosition, bool) {
	token := p.Market
	if token == "" {
		token = p.Coin
	}
	// Ostium reports markets as "BTC/USD".
	if i := strings.IndexByte(token, '/'); i > 0 {
		token = token[:i]
	}
	token = domain.NormalizeToken(token)
	if token == "" {
		return domain.OpenPosition{}, false
	}

	var side domain.Side
	switch strings.ToLower(strings.TrimSpace(p.Side)) {
	case "long", "buy":
		side = domain.SideLong
	case "short", "sell":
		side = domain.SideShort
	default:
		if !p.Szi.Valid || p.Szi.Decimal.IsZero() {
			return domain.OpenPosition{}, false
		}
		side = domain.SideLong
		if p.Szi.Decimal.IsNegative() {
			side = domain.SideShort
		}
	}

	entry := first(p.EntryPrice, p.EntryPx)
	leverage := first(p.Leverage)
	if leverage.LessThanOrEqual(decimal.Zero) {
		leverage = decimal.NewFromInt(1)
	}
	notional := first(p.NotionalUSD, p.PositionValue)
	collateral := first(p.Collateral, p.Size)
	if !p.Collateral.Valid && !p.Size.Valid && !notional.IsZero() {
		collateral = notional.Div(leverage)
	}
	if notional.IsZero() {
		notional = collateral.Mul(leverage)
	}

	id := p.TradeID
	if id == "" {
		// Hyperliquid nets one position per coin.
		id = token
	}

	return domain.OpenPosition{
		ID:         id,
		Token:      token,
		Side:       side,
		Collateral: collateral.InexactFloat64(),
		EntryPrice: entry.InexactFloat64(),
		Leverage:   leverage.InexactFloat64(),
		Notional:   notional.Abs().InexactFloat64(),
		TakeProfit: optional(p.TakeProfitPrice),
		StopLoss:   optional(p.StopLossPrice),
	}, true
}
