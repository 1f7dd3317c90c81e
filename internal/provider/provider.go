// Package provider defines the uniform market-data capability (§4.1) that
// the signal engine depends on, and the interchangeable implementations
// behind it (Tradier, Finnhub, an LLM-backed sentiment service, and a
// Composite that routes each capability to one of them) — generalized from the teacher's
// broker.Broker interface, which played the same "one capability, several
// vendors" role for order execution.
package provider

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

// Timing is when, relative to the trading session, an earnings release occurs.
type Timing string

const (
	BMO     Timing = "BMO" // before market open
	AMC     Timing = "AMC" // after market close
	DMH     Timing = "DMH" // during market hours
	Unknown Timing = "UNKNOWN"
)

// EarningsEvent is one calendar entry.
type EarningsEvent struct {
	Ticker string
	Date   time.Time
	Timing Timing
}

// SentimentDirection is the coarse directional read from an LLM sentiment pass.
type SentimentDirection string

const (
	Bullish SentimentDirection = "bullish"
	Bearish SentimentDirection = "bearish"
	Neutral SentimentDirection = "neutral"
)

// Sentiment is the result of a paid, budget-gated sentiment pass.
type Sentiment struct {
	Direction SentimentDirection
	Score     float64 // [-1, 1]
	Catalysts []string
	Risks     []string
}

// Clone implements cache.Cloner: Catalysts/Risks are copied so a caller
// mutating the returned slice never corrupts the cached original.
func (s Sentiment) Clone() any {
	clone := s
	clone.Catalysts = append([]string(nil), s.Catalysts...)
	clone.Risks = append([]string(nil), s.Risks...)
	return clone
}

// MaxResponseBytes bounds every provider HTTP response; larger bodies are
// rejected rather than buffered in full (§4.1).
const MaxResponseBytes = 10 << 20 // 10 MiB

// Provider is the capability every market-data vendor adapter implements.
type Provider interface {
	// Quote returns the current trade/mid price for ticker.
	Quote(ctx context.Context, ticker string) (money.Money, error)
	// OptionChain returns the option chain for ticker at expiration.
	OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error)
	// EarningsCalendar lists earnings events with dates in [from, to].
	EarningsCalendar(ctx context.Context, from, to time.Time) ([]EarningsEvent, error)
	// HistoricalMoves returns up to limit past earnings-day moves for
	// ticker, most-recent first.
	HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error)
	// Sentiment returns a paid sentiment read for ticker's upcoming
	// earningsDate. Callers are expected to budget-gate this call.
	Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (Sentiment, error)
}

// readLimited reads resp.Body up to MaxResponseBytes+1 bytes, failing
// EXTERNAL when the body is larger, mirroring the teacher's capped
// error-body reads in makeRequest but applied to every response.
func readLimited(op string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, MaxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, op, "failed reading response body", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, apperr.New(apperr.KindExternal, op, "response exceeded 10 MiB limit")
	}
	return body, nil
}

// classifyStatus maps an HTTP status code to an error Kind, matching the
// retryable/non-retryable split in §4.3: 429/5xx are transient, 4xx (other
// than 429) are treated as permanent client errors.
func classifyStatus(op string, statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return apperr.New(apperr.KindRateLimit, op, "rate limited: "+string(body))
	case statusCode >= 500:
		return apperr.New(apperr.KindExternal, op, "server error: "+string(body))
	case statusCode == http.StatusNotFound:
		return apperr.New(apperr.KindNoData, op, "not found: "+string(body))
	case statusCode >= 400:
		return apperr.New(apperr.KindInvalid, op, "client error: "+string(body))
	default:
		return nil
	}
}

// HTTPConfig configures a vendor adapter's outbound client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

// DefaultHTTPConfig returns sane defaults; callers override BaseURL/APIKey.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Client:  &http.Client{Timeout: 10 * time.Second},
		Timeout: 10 * time.Second,
	}
}
