package workflow

import "time"

// Backoff computes capped exponential reconnect delays. The attempt counter
// is owned by the caller and reset to zero on any successful connection.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the reconnect policy of the workflow service:
// 1s base, doubling per attempt, capped at 30s.
var DefaultBackoff = Backoff{Base: time.Second, Cap: 30 * time.Second}

// Delay returns the delay before attempt n (n >= 1): min(base * 2^(n-1), cap).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := b.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	cap := b.Cap
	if cap <= 0 {
		cap = DefaultBackoff.Cap
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
