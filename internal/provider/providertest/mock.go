// Package providertest offers a deterministic, in-memory Provider for use
// in tests, following the shape of the teacher's internal/mock.DataProvider
// (fixed fields, no network I/O) generalized from broker order-placement
// mocking to the market-data capability.
package providertest

import (
	"context"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
)

// Mock is a fully in-memory Provider. Not goroutine-safe — build one per
// test, same as the teacher's DataProvider.
type Mock struct {
	Prices      map[string]money.Money
	Chains      map[string]*option.Chain
	Earnings    []provider.EarningsEvent
	Moves       map[string][]historical.Move
	Sentiments  map[string]provider.Sentiment
	FailQuote   bool
}

// NewMock constructs an empty Mock ready for population.
func NewMock() *Mock {
	return &Mock{
		Prices:     make(map[string]money.Money),
		Chains:     make(map[string]*option.Chain),
		Moves:      make(map[string][]historical.Move),
		Sentiments: make(map[string]provider.Sentiment),
	}
}

// Quote returns the configured price for ticker, or NODATA.
func (m *Mock) Quote(ctx context.Context, ticker string) (money.Money, error) {
	if m.FailQuote {
		return money.Zero, apperr.New(apperr.KindExternal, "providertest.Mock.Quote", "forced failure")
	}
	price, ok := m.Prices[ticker]
	if !ok {
		return money.Zero, apperr.New(apperr.KindNoData, "providertest.Mock.Quote", "no price configured for "+ticker)
	}
	return price, nil
}

// OptionChain returns the configured chain for ticker, or NODATA.
func (m *Mock) OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error) {
	chain, ok := m.Chains[ticker]
	if !ok {
		return nil, apperr.New(apperr.KindNoData, "providertest.Mock.OptionChain", "no chain configured for "+ticker)
	}
	return chain, nil
}

// EarningsCalendar returns events whose date falls within [from, to].
func (m *Mock) EarningsCalendar(ctx context.Context, from, to time.Time) ([]provider.EarningsEvent, error) {
	var out []provider.EarningsEvent
	for _, e := range m.Earnings {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// HistoricalMoves returns up to limit configured moves for ticker.
func (m *Mock) HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	moves, ok := m.Moves[ticker]
	if !ok {
		return nil, apperr.New(apperr.KindNoData, "providertest.Mock.HistoricalMoves", "no moves configured for "+ticker)
	}
	if limit > 0 && len(moves) > limit {
		moves = moves[:limit]
	}
	return moves, nil
}

// Sentiment returns the configured sentiment for ticker.
func (m *Mock) Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (provider.Sentiment, error) {
	s, ok := m.Sentiments[ticker]
	if !ok {
		return provider.Sentiment{}, apperr.New(apperr.KindNoData, "providertest.Mock.Sentiment", "no sentiment configured for "+ticker)
	}
	return s, nil
}

var _ provider.Provider = (*Mock)(nil)
