package exchange

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

const (
	backoffBase   = 1 * time.Second
	backoffFactor = 2
	backoffCap    = 60 * time.Second
	maxAttempts   = 5
)

// newLimiter builds a token bucket held at safetyMargin (default 50%) below
// the exchange's documented weight budget (spec §5).
func newLimiter(weightPerMinute int, safetyMargin float64) *rate.Limiter {
	effective := float64(weightPerMinute) * (1 - safetyMargin)
	if effective < 1 {
		effective = 1
	}
	perSecond := effective / 60.0
	burst := int(effective / 6)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// withRetry runs fn, retrying on retryable GatewayErrors with exponential
// back-off (base 1s, factor 2, cap 60s). Persistent back-offs are logged so
// the caller's notifier wiring can alert on repeated occurrences.
func withRetry(ctx context.Context, label string, fn func() error) error {
	backoff := backoffBase
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		log.Printf("exchange: %s retryable error (attempt %d/%d): %v; backing off %s", label, attempt, maxAttempts, lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= backoffFactor
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
	log.Printf("exchange: %s exhausted retries: %v", label, lastErr)
	return lastErr
}
