package domain

// NetChange is the reconciled effect of a decision on the user's book.
type NetChange string

const (
	NetChangeOpen  NetChange = "OPEN"
	NetChangeClose NetChange = "CLOSE"
	NetChangeFlip  NetChange = "FLIP"
	NetChangeNone  NetChange = "NONE"
)

// Valid reports whether n is one of the known values.
func (n NetChange) Valid() bool {
	switch n {
	case NetChangeOpen, NetChangeClose, NetChangeFlip, NetChangeNone:
		return true
	}
	return false
}

// TradeDecision is the validated, clamped and reconciled oracle answer.
// FundAllocationPct == 0 implies ShouldOpenNewPosition == false.
type TradeDecision struct {
	ShouldOpenNewPosition bool      `json:"shouldOpenNewPosition"`
	ClosePositionIDs      []string  `json:"closePositionIds"`
	FundAllocationPct     float64   `json:"fundAllocationPct"`
	Leverage              float64   `json:"leverage"`
	NetChange             NetChange `json:"netChange"`
	Rationale             string    `json:"rationale"`
}

// OracleFailure names why the oracle answer could not be used. The zero value
// means the call succeeded.
type OracleFailure string

const (
	OracleOK                OracleFailure = ""
	OracleNotConfigured     OracleFailure = "not_configured"
	OracleTransport         OracleFailure = "transport"
	OracleTimeout           OracleFailure = "timeout"
	OracleEmptyResponse     OracleFailure = "empty_response"
	OracleMalformedResponse OracleFailure = "malformed_response"
	OracleSchemaViolation   OracleFailure = "schema_violation"
)
