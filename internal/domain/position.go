package domain

// Side is a perpetual position side.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// OpenPosition is a live position on a venue. It is fetched fresh for every
// decision and never cached.
type OpenPosition struct {
	ID         string   `json:"id"`
	Token      string   `json:"token"`
	Side       Side     `json:"side"`
	Collateral float64  `json:"collateral"`
	EntryPrice float64  `json:"entryPrice"`
	Leverage   float64  `json:"leverage"`
	Notional   float64  `json:"notional"`
	TakeProfit *float64 `json:"takeProfit,omitempty"`
	StopLoss   *float64 `json:"stopLoss,omitempty"`
}

// AccountSnapshot is the balance and position view of one wallet on one venue.
// Degraded snapshots carry zero balance and no positions.
type AccountSnapshot struct {
	Venue     Venue
	Wallet    string
	Balance   float64
	Positions []OpenPosition
	Degraded  bool
	Reason    string
}

// PositionsFor returns the open positions in token.
func (s AccountSnapshot) PositionsFor(token string) []OpenPosition {
	var out []OpenPosition
	for _, p := range s.Positions {
		if NormalizeToken(p.Token) == NormalizeToken(token) {
			out = append(out, p)
		}
	}
	return out
}
