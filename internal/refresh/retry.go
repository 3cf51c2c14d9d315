package refresh

import (
	"time"

	"repscore-engine/internal/domain"
)

// Policy decides whether a failed provider call is attempted again.
// Google errors are deterministic (bad key, unknown place) and never
// retried. OTA calls retry transient classes up to MaxRetries times
// with a fixed backoff; the dominant failure mode is a shared
// per-minute rate limit, so exponential growth buys nothing.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

func (p Policy) ShouldRetry(pl domain.Platform, attempt int, class domain.ErrorClass) bool {
	if pl == domain.PlatformGoogle {
		return false
	}
	if !class.Retryable() {
		return false
	}
	return attempt < p.MaxRetries
}

func (p Policy) Backoff(attempt int) time.Duration {
	return p.Delay
}
