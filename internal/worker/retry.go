package worker

import (
	"time"
)

// RetryPolicy bounds the transient-failure retry loop
type RetryPolicy struct {
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	BackoffStrategy string // "fixed" or "exponential"
}

// backoffDelay returns the wait before re-enqueueing the given attempt.
// attempt is 1-based (the retry_count the descriptor will carry).
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	base := policy.BackoffBase
	if base <= 0 {
		base = time.Second
	}

	var delay time.Duration
	switch policy.BackoffStrategy {
	case "exponential":
		if attempt < 1 {
			attempt = 1
		}
		// base * 2^(attempt-1), saturating on overflow
		shift := uint(attempt - 1)
		if shift > 30 {
			shift = 30
		}
		delay = base * time.Duration(uint(1)<<shift)
	default:
		delay = base
	}

	if policy.BackoffMax > 0 && delay > policy.BackoffMax {
		delay = policy.BackoffMax
	}
	return delay
}
