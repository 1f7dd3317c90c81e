package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

func TestLimiterAcquireRespectsCancellation(t *testing.T) {
	l := NewLimiter(1, 0.001) // effectively no refill
	l.rl.Allow()              // drain the single token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	if !apperr.Is(err, apperr.KindRateLimit) {
		t.Fatalf("expected RATELIMIT error, got %v", err)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour})
	fail := func() (any, error) { return nil, errors.New("boom") }

	_, _ = b.Execute(fail)
	_, _ = b.Execute(fail)

	_, err := b.Execute(func() (any, error) { return "ok", nil })
	if !apperr.Is(err, apperr.KindExternal) {
		t.Fatalf("expected breaker-open EXTERNAL error, got %v", err)
	}
}

func TestDoRetriesOnlyRetryableErrors(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	attempts := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return apperr.New(apperr.KindInvalid, "test.op", "permanent")
	})
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable error, got %d", attempts)
	}
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected INVALID passthrough, got %v", err)
	}

	attempts = 0
	err = Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return apperr.New(apperr.KindTimeout, "test.op", "transient")
	})
	if attempts != cfg.MaxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", cfg.MaxRetries+1, attempts)
	}
	if !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("expected TIMEOUT after exhausting retries, got %v", err)
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil || attempts != 1 {
		t.Fatalf("expected single successful attempt, got attempts=%d err=%v", attempts, err)
	}
}
