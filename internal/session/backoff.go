package session

import (
	"math"
	"time"
)

// backoffDelay returns the delay before retry attempt n (1-based):
// base * 2^(n-1), capped at maxDelay.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}
