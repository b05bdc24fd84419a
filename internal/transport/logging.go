package transport

import (
	applog "guitardiag/internal/log"
)

// LoggingTransport implements Transport by logging a one-line summary of
// each snapshot. It is the default sink and never fails to "send".
type LoggingTransport struct{}

// NewLoggingTransport returns a LoggingTransport.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("transport: using logging transport")
	return &LoggingTransport{}
}

// Send logs snapshot at Debug level.
func (lt *LoggingTransport) Send(snapshot Snapshot) error {
	applog.Debugf("snapshot: fretBuzz=%.2f intonation=%s stringHealth=%.2f",
		snapshot.FretBuzz.BuzzScore, snapshot.Intonation.State, snapshot.StringHealth.HealthScore)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
