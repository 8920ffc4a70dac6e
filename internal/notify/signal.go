package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// SignalEvent classifies a persisted signal. ok is false for signals that are
// not worth a notification (plain skips).
func SignalEvent(sig domain.Signal) (event string, ok bool) {
	switch {
	case sig.OracleFailure != domain.OracleOK:
		return EventOracleFallback, true
	case sig.NetChange == domain.NetChangeFlip:
		return EventSignalFlipped, true
	case sig.NetChange == domain.NetChangeOpen:
		return EventSignalOpened, true
	case sig.NetChange == domain.NetChangeClose:
		return EventSignalClosed, true
	}
	return "", false
}

// FormatSignal renders the title and body of a signal notification.
func FormatSignal(sig domain.Signal) (title, message string) {
	title = fmt.Sprintf("%s %s %s", sig.NetChange, sig.Side, sig.Token)
	if sig.OracleFailure != domain.OracleOK {
		title = fmt.Sprintf("Oracle fallback (%s) %s", sig.OracleFailure, sig.Token)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deployment: %s\n", sig.DeploymentID)
	if sig.Venue != "" {
		fmt.Fprintf(&b, "Venue: %s\n", sig.Venue)
	}
	if sig.ShouldTrade {
		fmt.Fprintf(&b, "Allocation: %.1f%% at %.0fx\n", sig.AllocationPct, sig.Leverage)
	}
	if len(sig.ClosePositionIDs) > 0 {
		fmt.Fprintf(&b, "Closing: %s\n", strings.Join(sig.ClosePositionIDs, ", "))
	}
	fmt.Fprintf(&b, "Score: %.2f (%s)", sig.Score.Final, sig.Score.Tier)
	if sig.Rationale != "" {
		fmt.Fprintf(&b, "\n%s", sig.Rationale)
	}
	return title, b.String()
}
