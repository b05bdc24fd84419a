// Package transport implements the renderer-facing outbound sinks: logging,
// WebSocket, and (in the udp subpackage) a binary UDP publisher. The
// Transport sinks receive Snapshots through Send from a caller that polls
// the analyzers' LatestResult methods on a timer; the udp Publisher polls
// them on its own ticker. None of them touches analyzer-internal state.
package transport

import (
	"time"

	"guitardiag/internal/analysis"
)

// Snapshot bundles the latest result from every diagnostic analyzer into a
// single unit a sink can serialize and ship in one call.
type Snapshot struct {
	Timestamp    time.Time                   `json:"timestamp"`
	FretBuzz     analysis.FretBuzzResult     `json:"fret_buzz"`
	Intonation   analysis.IntonationResult   `json:"intonation"`
	StringHealth analysis.StringHealthResult `json:"string_health"`
}

// Transport is a sink for outbound result snapshots. Implementations must
// be safe for concurrent Send calls and must not block the caller for long.
type Transport interface {
	Send(Snapshot) error
	Close() error
}
