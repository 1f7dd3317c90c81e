package ratelimit

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

// RetryConfig configures the exponential backoff policy applied above the
// circuit breaker (§4.3): base*2^attempt, capped, up to MaxRetries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig mirrors the teacher's retry.DefaultConfig proportions,
// generalized from a single fixed backoff to the design's base*2^attempt
// schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// Do invokes fn, retrying while apperr.Retryable(err) is true, up to
// MaxRetries additional attempts, with exponential backoff and jitter.
// Non-retryable errors (NODATA, INVALID, CALCULATION, CONFIGURATION) return
// immediately on first occurrence.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperr.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}
		delay := nextBackoff(cfg, attempt)
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindTimeout, "ratelimit.Do", "context cancelled during backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

func nextBackoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d + jitter(d)
}

// jitter adds up to 25% random delay, using crypto/rand like the teacher's
// calculateNextBackoff rather than math/rand, to avoid correlated retry
// storms across goroutines seeded from the same clock tick.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	maxJitter := int64(base) / 4
	if maxJitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
