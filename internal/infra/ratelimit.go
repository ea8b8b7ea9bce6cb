package infra

import (
	"time"

	"golang.org/x/time/rate"
)

// ════════════════════════════════════════════════════════════════════
// Rate limiting
// ════════════════════════════════════════════════════════════════════

// NewLimiter allows n requests per window, spread evenly, with bursts of
// up to n. n <= 0 or window <= 0 disables limiting.
func NewLimiter(n int, window time.Duration) *rate.Limiter {
	if n <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}
