package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// rawDecision mirrors the response schema with pointers so absent fields can
// be told apart from zero values.
type rawDecision struct {
	ShouldOpenNewPosition *bool     `json:"shouldOpenNewPosition"`
	ClosePositionIDs      *[]string `json:"closePositionIds"`
	FundAllocationPct     *float64  `json:"fundAllocationPct"`
	Leverage              *float64  `json:"leverage"`
	NetChange             *string   `json:"netChange"`
	Rationale             *string   `json:"rationale"`
}

// parseError carries the failure class of a rejected response.
type parseError struct {
	kind domain.OracleFailure
	err  error
}

func (e *parseError) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *parseError) Unwrap() error { return e.err }

func failure(kind domain.OracleFailure, format string, args ...any) *parseError {
	return &parseError{kind: kind, err: fmt.Errorf(format, args...)}
}

// parseDecision strictly decodes an oracle response.
func parseDecision(body []byte) (domain.TradeDecision, error) {
	body = stripFences(bytes.TrimSpace(body))
	if len(body) == 0 {
		return domain.TradeDecision{}, failure(domain.OracleEmptyResponse, "empty body")
	}

	var raw rawDecision
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.TradeDecision{}, failure(domain.OracleSchemaViolation, "field %s: %v", typeErr.Field, err)
		}
		return domain.TradeDecision{}, failure(domain.OracleMalformedResponse, "%v", err)
	}

	var missing []string
	if raw.ShouldOpenNewPosition == nil {
		missing = append(missing, "shouldOpenNewPosition")
	}
	if raw.ClosePositionIDs == nil {
		missing = append(missing, "closePositionIds")
	}
	if raw.FundAllocationPct == nil {
		missing = append(missing, "fundAllocationPct")
	}
	if raw.Leverage == nil {
		missing = append(missing, "leverage")
	}
	if raw.NetChange == nil {
		missing = append(missing, "netChange")
	}
	if raw.Rationale == nil {
		missing = append(missing, "rationale")
	}
	if len(missing) > 0 {
		return domain.TradeDecision{}, failure(domain.OracleSchemaViolation, "missing fields %v", missing)
	}

	nc := domain.NetChange(*raw.NetChange)
	if !nc.Valid() {
		return domain.TradeDecision{}, failure(domain.OracleSchemaViolation, "netChange %q not in enum", *raw.NetChange)
	}

	return domain.TradeDecision{
		ShouldOpenNewPosition: *raw.ShouldOpenNewPosition,
		ClosePositionIDs:      *raw.ClosePositionIDs,
		FundAllocationPct:     *raw.FundAllocationPct,
		Leverage:              *raw.Leverage,
		NetChange:             nc,
		Rationale:             *raw.Rationale,
	}, nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	} else {
		b = nil
	}
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}
