package provider

import (
	"context"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

// Composite routes each Provider operation to a dedicated backing
// implementation, since no single real vendor in §4.1 offers quotes,
// chains, an earnings calendar, historical moves, and sentiment together.
type Composite struct {
	Quotes     Provider
	Chains     Provider
	Calendar   Provider
	History    Provider
	SentimentP Provider
}

// Quote delegates to Quotes.
func (c *Composite) Quote(ctx context.Context, ticker string) (money.Money, error) {
	return c.Quotes.Quote(ctx, ticker)
}

// OptionChain delegates to Chains.
func (c *Composite) OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error) {
	return c.Chains.OptionChain(ctx, ticker, expiration)
}

// EarningsCalendar delegates to Calendar.
func (c *Composite) EarningsCalendar(ctx context.Context, from, to time.Time) ([]EarningsEvent, error) {
	return c.Calendar.EarningsCalendar(ctx, from, to)
}

// HistoricalMoves delegates to History.
func (c *Composite) HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	return c.History.HistoricalMoves(ctx, ticker, limit)
}

// Sentiment delegates to SentimentP.
func (c *Composite) Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (Sentiment, error) {
	return c.SentimentP.Sentiment(ctx, ticker, earningsDate)
}

var _ Provider = (*Composite)(nil)
