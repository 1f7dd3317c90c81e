// Package option models option quotes and chains: ATM discovery, liquidity
// predicates, and strike-addressed storage. The quote shape is adapted from
// the teacher's broker.Option/Greeks response types, generalized away from a
// single vendor's wire format.
package option

import (
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
)

// Type is the closed set of option variants — calls and puts, never an
// open-ended subtype hierarchy.
type Type string

const (
	// Call is a call option.
	Call Type = "call"
	// Put is a put option.
	Put Type = "put"
)

// Greeks carries the standard option greeks plus implied volatility, when the
// provider supplies them.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
	IV    float64
}

// Quote represents a single option contract's market data.
type Quote struct {
	Strike            money.Strike
	Type              Type
	Bid               money.Money
	Ask               money.Money
	ImpliedVolatility *float64
	OpenInterest      int64
	Volume            int64
	Greeks            *Greeks
}

// Mid returns the midpoint of bid and ask.
func (q Quote) Mid() money.Money {
	return q.Bid.Add(q.Ask).DivScalar(2)
}

// SpreadPct returns (ask-bid)/mid as a fraction (e.g. 0.08 for 8%).
// Returns 1.0 (maximally wide) when mid is zero to push REJECT classification
// rather than dividing by zero.
func (q Quote) SpreadPct() float64 {
	mid := q.Mid()
	if mid.IsZero() {
		return 1.0
	}
	spread := q.Ask.Sub(q.Bid)
	return spread.Float64() / mid.Float64()
}

// IsLiquid is a coarse liquidity predicate used by ATM discovery: a
// strictly-positive mid price and a non-crossed quote.
func (q Quote) IsLiquid() bool {
	return q.Mid().GreaterThan(money.Zero) && !q.Bid.GreaterThan(q.Ask)
}

// Chain is an option chain for one ticker/expiration: calls and puts indexed
// by strike.
type Chain struct {
	Ticker     string
	Expiration time.Time
	StockPrice money.Money
	Calls      map[string]Quote // keyed by Strike.Key()
	Puts       map[string]Quote
}

// NewChain constructs an empty Chain ready to accept quotes.
func NewChain(ticker string, expiration time.Time, stockPrice money.Money) *Chain {
	return &Chain{
		Ticker:     ticker,
		Expiration: expiration,
		StockPrice: stockPrice,
		Calls:      make(map[string]Quote),
		Puts:       make(map[string]Quote),
	}
}

// AddQuote inserts a quote into the appropriate side of the chain.
func (c *Chain) AddQuote(q Quote) {
	key := q.Strike.Key()
	switch q.Type {
	case Call:
		c.Calls[key] = q
	case Put:
		c.Puts[key] = q
	}
}

// Clone returns a deep copy of c: a new Chain with its own Calls/Puts maps,
// so a caller mutating the returned chain can't corrupt a cached original.
func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	clone := &Chain{
		Ticker:     c.Ticker,
		Expiration: c.Expiration,
		StockPrice: c.StockPrice,
		Calls:      make(map[string]Quote, len(c.Calls)),
		Puts:       make(map[string]Quote, len(c.Puts)),
	}
	for k, v := range c.Calls {
		clone.Calls[k] = v
	}
	for k, v := range c.Puts {
		clone.Puts[k] = v
	}
	return clone
}

// Call returns the call quote at strike, if present.
func (c *Chain) Call(strike money.Strike) (Quote, bool) {
	q, ok := c.Calls[strike.Key()]
	return q, ok
}

// Put returns the put quote at strike, if present.
func (c *Chain) Put(strike money.Strike) (Quote, bool) {
	q, ok := c.Puts[strike.Key()]
	return q, ok
}

// strikeUniverse returns the union of call and put strikes present in the chain, sorted ascending.
func (c *Chain) strikeUniverse() []money.Strike {
	seen := make(map[string]money.Strike)
	for _, q := range c.Calls {
		seen[q.Strike.Key()] = q.Strike
	}
	for _, q := range c.Puts {
		seen[q.Strike.Key()] = q.Strike
	}
	strikes := make([]money.Strike, 0, len(seen))
	for _, s := range seen {
		strikes = append(strikes, s)
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Cmp(strikes[j]) < 0 })
	return strikes
}

// ATMStrike returns the strike minimizing |strike - stock_price|, ties broken
// by the lowest strike. Fails NODATA when the chain contains no call/put with
// a positive mid.
func (c *Chain) ATMStrike() (money.Strike, error) {
	if len(c.Calls) == 0 || len(c.Puts) == 0 {
		return money.Strike{}, apperr.New(apperr.KindNoData, "option.Chain.ATMStrike", "chain has no calls or no puts")
	}

	spot := c.StockPrice.Float64()
	strikes := c.strikeUniverse()

	var best money.Strike
	found := false
	bestDiff := math.MaxFloat64
	for _, s := range strikes {
		call, hasCall := c.Call(s)
		put, hasPut := c.Put(s)
		if !hasCall || !hasPut {
			continue
		}
		if !call.Mid().GreaterThan(money.Zero) || !put.Mid().GreaterThan(money.Zero) {
			continue
		}
		diff := math.Abs(s.Float64() - spot)
		if diff < bestDiff-1e-9 {
			bestDiff = diff
			best = s
			found = true
		}
	}
	if !found {
		return money.Strike{}, apperr.New(apperr.KindNoData, "option.Chain.ATMStrike",
			"no strike has both a liquid call and a liquid put")
	}
	return best, nil
}

// MoneynessQuotes returns (strike, moneyness, call, put) tuples for strikes
// whose moneyness (K-S)/S falls strictly outside exclBand and within maxBand
// (both fractions, e.g. 0.02 and 0.15), used by the skew analyzer (§4.7).
// Only strikes with both a call and a put quote present are returned.
type MoneynessPoint struct {
	Strike    money.Strike
	Moneyness float64
	Call      Quote
	Put       Quote
}

// MoneynessQuotes selects OTM-ish points for the skew regression.
func (c *Chain) MoneynessQuotes(exclBand, maxBand float64) []MoneynessPoint {
	spot := c.StockPrice.Float64()
	if spot <= 0 {
		return nil
	}
	var points []MoneynessPoint
	for _, s := range c.strikeUniverse() {
		call, hasCall := c.Call(s)
		put, hasPut := c.Put(s)
		if !hasCall || !hasPut {
			continue
		}
		moneyness := (s.Float64() - spot) / spot
		abs := math.Abs(moneyness)
		if abs <= exclBand || abs > maxBand {
			continue
		}
		points = append(points, MoneynessPoint{Strike: s, Moneyness: moneyness, Call: call, Put: put})
	}
	return points
}
