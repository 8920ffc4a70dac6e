package oracle

import (
	"math"
	"slices"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// clamp bounds the numeric fields, drops close ids that do not belong to a
// known position, and enforces allocation 0 => no open. A decision that opens
// nothing carries no allocation and leverage 1.
func clamp(d domain.TradeDecision, maxLeverage int, known []domain.OpenPosition) domain.TradeDecision {
	if math.IsNaN(d.FundAllocationPct) || d.FundAllocationPct < 0 {
		d.FundAllocationPct = 0
	}
	if d.FundAllocationPct > 100 {
		d.FundAllocationPct = 100
	}

	capLev := float64(domain.MaxLeverageCap)
	if maxLeverage > 0 && float64(maxLeverage) < capLev {
		capLev = float64(maxLeverage)
	}
	if math.IsNaN(d.Leverage) || d.Leverage < 1 {
		d.Leverage = 1
	}
	if d.Leverage > capLev {
		d.Leverage = capLev
	}

	ids := make([]string, 0, len(d.ClosePositionIDs))
	for _, id := range d.ClosePositionIDs {
		if slices.ContainsFunc(known, func(p domain.OpenPosition) bool { return p.ID == id }) && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	d.ClosePositionIDs = ids

	if d.FundAllocationPct == 0 {
		d.ShouldOpenNewPosition = false
	}
	if !d.ShouldOpenNewPosition {
		d.FundAllocationPct = 0
		d.Leverage = 1
	}
	return d
}

// Reconcile derives NetChange from the decision and the positions held in the
// signal's token, overriding whatever the oracle claimed.
//
//	close event                     -> CLOSE (all token positions if none named)
//	no position, open               -> OPEN
//	same side only, open            -> OPEN (never FLIP)
//	opposite side held, open        -> FLIP (opposite ids added to close list)
//	not open, close ids             -> CLOSE
//	otherwise                       -> NONE
func Reconcile(d domain.TradeDecision, side domain.Side, closeIntent bool, positions []domain.OpenPosition) domain.TradeDecision {
	if closeIntent {
		d.ShouldOpenNewPosition = false
		d.FundAllocationPct = 0
		d.Leverage = 1
		if len(d.ClosePositionIDs) == 0 {
			for _, p := range positions {
				d.ClosePositionIDs = append(d.ClosePositionIDs, p.ID)
			}
		}
		if len(d.ClosePositionIDs) == 0 {
			d.NetChange = domain.NetChangeNone
			return d
		}
		d.NetChange = domain.NetChangeClose
		return d
	}

	if d.ShouldOpenNewPosition && side == "" {
		d.ShouldOpenNewPosition = false
		d.FundAllocationPct = 0
	}

	if !d.ShouldOpenNewPosition {
		d.FundAllocationPct = 0
		d.Leverage = 1
		if len(d.ClosePositionIDs) > 0 {
			d.NetChange = domain.NetChangeClose
		} else {
			d.NetChange = domain.NetChangeNone
		}
		return d
	}

	var opposite []string
	for _, p := range positions {
		if p.Side == side.Opposite() {
			opposite = append(opposite, p.ID)
		}
	}
	if len(opposite) == 0 {
		d.NetChange = domain.NetChangeOpen
		return d
	}

	for _, id := range opposite {
		if !slices.Contains(d.ClosePositionIDs, id) {
			d.ClosePositionIDs = append(d.ClosePositionIDs, id)
		}
	}
	d.NetChange = domain.NetChangeFlip
	return d
}
