package client

import "time"

// Backoff computes reconnect delays: min(Base * 2^attempt, Max). The
// attempt counter is owned by the Session and resets only on a successful
// connect; after MaxAttempts failures the session stays disconnected until
// an external trigger restarts the cycle.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the reference client: 1 s base, 30 s cap, 10
// attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Max:         30 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before reconnect attempt n (0-based). Capped at
// Max, and guarded against shift overflow for large n.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Exhausted reports whether attempt n is past the configured limit.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}
