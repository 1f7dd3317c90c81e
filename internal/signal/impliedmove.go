// Package signal implements the VRP signal pipeline: implied move, VRP
// scoring, skew/directional bias, liquidity tiering, and tail-risk sizing
// caps (§4.5–4.9) — the arithmetic core the teacher's strangle strategy
// hints at in CheckEntryConditions/FindStrangleStrikes but never fully
// generalizes beyond one fixed strangle shape.
package signal

import (
	"log"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

// ImpliedMove is the result of pricing an at-the-money straddle (§4.5).
type ImpliedMove struct {
	Ticker         string
	Expiration     time.Time
	StockPrice     money.Money
	ATMStrike      money.Strike
	StraddleCost   money.Money
	ImpliedMovePct float64
	UpperBound     money.Money
	LowerBound     money.Money
	CallIV         *float64
	PutIV          *float64
	AvgIV          *float64
}

// ImpliedMoveBounds are the sane reasonability bounds the design logs a
// warning outside of, without failing (§4.5 step 3).
const (
	ImpliedMoveLowerPct = 0.5
	ImpliedMoveUpperPct = 30.0
)

// ComputeImpliedMove prices the ATM straddle for chain at the given
// expiration (which must be on or after asOf).
func ComputeImpliedMove(chain *option.Chain, asOf time.Time, logger *log.Logger) (*ImpliedMove, error) {
	if chain.Expiration.Before(truncateToDay(asOf)) {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeImpliedMove", "expiration is in the past")
	}

	atm, err := chain.ATMStrike()
	if err != nil {
		return nil, err
	}

	call, ok := chain.Call(atm)
	if !ok || !call.IsLiquid() {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeImpliedMove", "ATM call missing or illiquid")
	}
	put, ok := chain.Put(atm)
	if !ok || !put.IsLiquid() {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeImpliedMove", "ATM put missing or illiquid")
	}

	if !chain.StockPrice.GreaterThan(money.Zero) {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeImpliedMove", "stock price must be positive")
	}

	straddle := call.Mid().Add(put.Mid())
	impliedPct := 100 * straddle.Float64() / chain.StockPrice.Float64()

	if logger != nil && (impliedPct < ImpliedMoveLowerPct || impliedPct > ImpliedMoveUpperPct) {
		logger.Printf("signal: implied move %.2f%% for %s outside sane bounds [%.1f,%.1f]",
			impliedPct, chain.Ticker, ImpliedMoveLowerPct, ImpliedMoveUpperPct)
	}

	im := &ImpliedMove{
		Ticker:         chain.Ticker,
		Expiration:     chain.Expiration,
		StockPrice:     chain.StockPrice,
		ATMStrike:      atm,
		StraddleCost:   straddle,
		ImpliedMovePct: impliedPct,
		UpperBound:     chain.StockPrice.Add(straddle),
		LowerBound:     chain.StockPrice.Sub(straddle),
	}

	if call.ImpliedVolatility != nil {
		im.CallIV = call.ImpliedVolatility
	}
	if put.ImpliedVolatility != nil {
		im.PutIV = put.ImpliedVolatility
	}
	if im.CallIV != nil && im.PutIV != nil {
		avg := (*im.CallIV + *im.PutIV) / 2
		im.AvgIV = &avg
	}

	return im, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
