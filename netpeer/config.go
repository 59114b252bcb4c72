package netpeer

import "time"

// Config tunes the reliability/timeout/heartbeat parameters shared by a
// Server's and a Client's Connections. The zero value is not usable —
// construct with DefaultConfig and override individual fields.
type Config struct {
	// TimeoutTime is how long an established Connection may go without
	// inbound traffic before it's considered dead.
	TimeoutTime time.Duration
	// ConnectTimeoutTime is how long a Connecting attempt may run
	// without a Welcome/Reject before it's given up on. The source
	// material doesn't separate this from TimeoutTime; this
	// implementation defaults it to the same value but lets callers
	// tune it independently (see DESIGN.md).
	ConnectTimeoutTime time.Duration
	// HeartbeatInterval governs how often an established Connection
	// sends a Heartbeat ping.
	HeartbeatInterval time.Duration
	// MaxSendAttempts bounds how many times in total a reliable message
	// is sent, the first send included, before it's given up on
	// (RetryExhausted).
	MaxSendAttempts int
}

// DefaultConfig returns the spec's default timings: 5s timeout, 5s connect
// timeout, 1s heartbeat interval, 15 retry attempts.
func DefaultConfig() Config {
	return Config{
		TimeoutTime:        5000 * time.Millisecond,
		ConnectTimeoutTime: 5000 * time.Millisecond,
		HeartbeatInterval:  1000 * time.Millisecond,
		MaxSendAttempts:    15,
	}
}
