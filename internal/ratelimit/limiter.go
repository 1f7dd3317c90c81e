// Package ratelimit combines a per-provider token-bucket limiter with a
// circuit breaker and retry policy, so every outbound provider call is
// throttled, fails fast under sustained remote failure, and retries only
// the error kinds the design calls transient.
package ratelimit

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

// Limiter is a token bucket: capacity N, refill rate R tokens/sec. Acquire
// blocks, with cancellation, until a token is available.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter constructs a Limiter with the given capacity and refill rate.
func NewLimiter(capacity int, refillPerSec float64) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(refillPerSec), capacity)}
}

// Acquire blocks until a token is available or ctx is cancelled, in which
// case it returns a RATELIMIT error (cancellation while waiting is treated
// the same as a limiter-induced delay, not a caller bug).
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.rl.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.KindRateLimit, "ratelimit.Limiter.Acquire", "token acquisition cancelled", err)
	}
	return nil
}

// BreakerConfig configures the circuit breaker's trip/recovery behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open. Default 5.
	FailureThreshold uint32
	// RecoveryTimeout is how long the breaker stays open before allowing
	// one half-open probe. Default 60s.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig matches the design's stated defaults (§4.3).
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
}

// Breaker wraps gobreaker.CircuitBreaker with the design's three named
// states: CLOSED, OPEN (reject with EXTERNAL), HALF_OPEN (single probe).
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker constructs a Breaker named for the provider it guards.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe permitted in HALF_OPEN
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. When the breaker is open the call is
// rejected without invoking fn, surfaced as an EXTERNAL error.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apperr.Wrap(apperr.KindExternal, "ratelimit.Breaker.Execute", "circuit breaker open", err)
	}
	return result, err
}

// State reports the breaker's current state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
