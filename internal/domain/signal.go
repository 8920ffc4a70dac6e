package domain

import "time"

// SkipReason explains why a signal did not open a position.
type SkipReason string

const (
	SkipUnsupportedToken SkipReason = "token_unsupported"
	SkipOracleDeclined   SkipReason = "oracle_declined"
	SkipOracleFallback   SkipReason = "oracle_fallback"
	SkipCloseOnly        SkipReason = "close_only"
	SkipNoChange         SkipReason = "no_change"
)

// SizeModel describes how the executor should size a new position.
type SizeModel struct {
	Type     string  `json:"type"`
	ValuePct float64 `json:"value"`
}

// RiskModel carries the stop-loss and take-profit fractions and leverage for
// a position.
type RiskModel struct {
	StopLoss   float64 `json:"stopLossPct"`
	TakeProfit float64 `json:"takeProfitPct"`
	Leverage   float64 `json:"leverage"`
}

// Signal is the immutable, persisted result of one decision.
// SkippedReason is nil exactly when a position was opened.
type Signal struct {
	ID               string         `json:"id"`
	JobKey           string         `json:"jobKey"`
	AgentID          string         `json:"agentId"`
	DeploymentID     string         `json:"deploymentId"`
	UserWallet       string         `json:"userWallet"`
	Token            string         `json:"tokenSymbol"`
	Venue            Venue          `json:"venue"`
	Side             Side           `json:"side"`
	SizeModel        SizeModel      `json:"sizeModel"`
	RiskModel        RiskModel      `json:"riskModel"`
	SourceEventIDs   []string       `json:"sourceEventIds"`
	Rationale        string         `json:"rationale"`
	ShouldTrade      bool           `json:"shouldTrade"`
	AllocationPct    float64        `json:"allocationPct"`
	Leverage         float64        `json:"leverage"`
	ClosePositionIDs []string       `json:"closePositionIds"`
	NetChange        NetChange      `json:"netChange"`
	Score            CompositeScore `json:"score"`
	OracleFailure    OracleFailure  `json:"oracleFailure,omitempty"`
	SkippedReason    *SkipReason    `json:"skippedReason"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// ExecutionStatus is the state of a position opened from a signal.
type ExecutionStatus string

const (
	ExecutionOpen   ExecutionStatus = "OPEN"
	ExecutionClosed ExecutionStatus = "CLOSED"
)

// Execution is the execution-layer record linked to a signal. The engine only
// reads it.
type Execution struct {
	SignalID   string
	Status     ExecutionStatus
	EntryPrice float64
	Quantity   float64
}

// RecentSignal is a prior signal for a dedup check, with its execution if any.
type RecentSignal struct {
	SignalID  string
	CreatedAt time.Time
	Execution *Execution
}
