// Package strategy generates option-strategy candidates from a chain,
// implied move, VRP tier, directional bias, and liquidity tier (§4.11).
// It keeps the teacher's strategy.StrangleStrategy config struct and
// logger (the chain cache lives in the orchestrator's pipeline) but generalizes
// strike selection from one fixed strangle width to the directional
// condor/butterfly/spread family the design calls for.
package strategy

import (
	"log"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
	"github.com/eddiefleurent/vrpscanner/internal/util"
)

// Type enumerates the strategy shapes the generator emits.
type Type string

const (
	BullPutSpread  Type = "BULL_PUT_SPREAD"
	BearCallSpread Type = "BEAR_CALL_SPREAD"
	IronCondor     Type = "IRON_CONDOR"
	IronButterfly  Type = "IRON_BUTTERFLY"
)

// Side is buy or sell, in option-leg terms.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Leg is one option position within a Strategy.
type Leg struct {
	Side       Side
	OptionType option.Type
	Strike     money.Strike
	Quantity   int
}

// Strategy is a ranked candidate trade structure.
type Strategy struct {
	Type                   Type
	Legs                   []Leg
	MaxProfit              money.Money
	MaxRisk                money.Money
	POP                    float64
	Description            string
	RequiredLiquidityFloor signal.Tier
}

// Config tunes strike placement and candidate acceptance.
type Config struct {
	// DeltaShiftWeak/Moderate/Strong are the "safer" strike shift amounts,
	// in price points, applied per bias strength (§4.11).
	DeltaShiftWeak     int
	DeltaShiftModerate int
	DeltaShiftStrong   int
	// RequiredLiquidityFloor is the minimum per-leg liquidity tier; legs
	// below it cause the candidate to be dropped rather than penalized.
	RequiredLiquidityFloor signal.Tier
	PositionSize           int64
}

// DefaultConfig matches the design's stated shift magnitudes (§4.11).
func DefaultConfig() Config {
	return Config{DeltaShiftWeak: 2, DeltaShiftModerate: 5, DeltaShiftStrong: 10, RequiredLiquidityFloor: signal.TierWarning, PositionSize: 1}
}

// Generator builds Strategy candidates from chain data.
type Generator struct {
	cfg    Config
	logger *log.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg Config, logger *log.Logger) *Generator {
	return &Generator{cfg: cfg, logger: logger}
}

// strikeUniverse returns the chain's sorted strikes, ascending.
func strikeUniverse(chain *option.Chain) []money.Strike {
	seen := make(map[string]money.Strike)
	for _, q := range chain.Calls {
		seen[q.Strike.Key()] = q.Strike
	}
	for _, q := range chain.Puts {
		seen[q.Strike.Key()] = q.Strike
	}
	strikes := make([]money.Strike, 0, len(seen))
	for _, s := range seen {
		strikes = append(strikes, s)
	}
	for i := 1; i < len(strikes); i++ {
		for j := i; j > 0 && strikes[j-1].Cmp(strikes[j]) > 0; j-- {
			strikes[j-1], strikes[j] = strikes[j], strikes[j-1]
		}
	}
	return strikes
}

// strikeTick is the rounding increment real strike grids step by at a given
// underlying price (finer near small caps, coarser once the stock is
// expensive enough that $1 increments dominate).
func strikeTick(spot float64) float64 {
	if spot < 25 {
		return 0.5
	}
	return 1.0
}

// nearestStrike returns the strike in universe closest to target, after
// snapping target to the underlying's typical strike-grid increment.
func nearestStrike(universe []money.Strike, target float64) (money.Strike, bool) {
	target = util.RoundToTick(target, strikeTick(target))
	if len(universe) == 0 {
		return money.Strike{}, false
	}
	best := universe[0]
	bestDiff := abs(best.Float64() - target)
	for _, s := range universe[1:] {
		d := abs(s.Float64() - target)
		if d < bestDiff {
			best = s
			bestDiff = d
		}
	}
	return best, true
}

// strikeOneStepFurther returns the next strike beyond pivot in the given
// direction (away from spot), or the far end of the universe if none exists.
func strikeOneStepFurther(universe []money.Strike, pivot money.Strike, outward int) money.Strike {
	idx := -1
	for i, s := range universe {
		if s.Cmp(pivot) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return pivot
	}
	next := idx + outward
	if next < 0 {
		return universe[0]
	}
	if next >= len(universe) {
		return universe[len(universe)-1]
	}
	return universe[next]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func shiftForStrength(cfg Config, strength string) int {
	switch strength {
	case "weak":
		return cfg.DeltaShiftWeak
	case "moderate":
		return cfg.DeltaShiftModerate
	case "strong":
		return cfg.DeltaShiftStrong
	default:
		return 0
	}
}

// Generate emits Strategy candidates for chain given the signal context.
// Candidates are returned in build order (condor before butterfly) and are
// not sorted or ranked.
func (g *Generator) Generate(chain *option.Chain, im *signal.ImpliedMove, vrp *signal.VRPResult, skew *signal.SkewAnalysis) ([]Strategy, error) {
	if vrp == nil {
		return nil, apperr.New(apperr.KindInvalid, "strategy.Generator.Generate", "vrp result is required")
	}
	if vrp.Recommendation == signal.Skip {
		return nil, nil
	}

	universe := strikeUniverse(chain)
	if len(universe) < 4 {
		return nil, apperr.New(apperr.KindNoData, "strategy.Generator.Generate", "chain has too few strikes to build spreads")
	}

	spot := chain.StockPrice.Float64()
	move := im.StraddleCost.Float64()

	var candidates []Strategy

	switch {
	case skew == nil || skew.IsNeutral():
		if vrp.Recommendation == signal.Good || vrp.Recommendation == signal.Excellent {
			if s, ok := g.buildIronCondor(chain, universe, spot, move); ok {
				candidates = append(candidates, s)
			}
			if s, ok := g.buildIronButterfly(chain, universe, spot); ok {
				candidates = append(candidates, s)
			}
		}
	case skew.IsBullish():
		shift := float64(shiftForStrength(g.cfg, skew.Strength()))
		if s, ok := g.buildBullPutSpread(chain, universe, spot, move, shift); ok {
			candidates = append(candidates, s)
		}
	case skew.IsBearish():
		shift := float64(shiftForStrength(g.cfg, skew.Strength()))
		if s, ok := g.buildBearCallSpread(chain, universe, spot, move, shift); ok {
			candidates = append(candidates, s)
		}
	}

	return candidates, nil
}

func (g *Generator) legLiquidityOK(chain *option.Chain, strikes ...struct {
	strike money.Strike
	typ    option.Type
}) bool {
	var quotes []option.Quote
	for _, s := range strikes {
		var q option.Quote
		var ok bool
		if s.typ == option.Call {
			q, ok = chain.Call(s.strike)
		} else {
			q, ok = chain.Put(s.strike)
		}
		if !ok {
			return false
		}
		quotes = append(quotes, q)
	}
	tier := signal.ClassifyLegs(quotes, g.cfg.PositionSize)
	return tier >= g.cfg.RequiredLiquidityFloor
}

func (g *Generator) buildBullPutSpread(chain *option.Chain, universe []money.Strike, spot, move, deltaShift float64) (Strategy, bool) {
	shortTarget := spot - move - deltaShift
	shortStrike, ok := nearestStrike(universe, shortTarget)
	if !ok {
		return Strategy{}, false
	}
	longStrike := strikeOneStepFurther(universe, shortStrike, -1)

	shortQ, ok := chain.Put(shortStrike)
	if !ok {
		return Strategy{}, false
	}
	longQ, ok := chain.Put(longStrike)
	if !ok {
		return Strategy{}, false
	}

	if !g.legLiquidityOK(chain, struct {
		strike money.Strike
		typ    option.Type
	}{shortStrike, option.Put}, struct {
		strike money.Strike
		typ    option.Type
	}{longStrike, option.Put}) {
		return Strategy{}, false
	}

	credit := shortQ.Mid().Sub(longQ.Mid())
	width := money.NewMoney(abs(shortStrike.Float64() - longStrike.Float64()))
	maxRisk := width.Sub(credit)

	return Strategy{
		Type: BullPutSpread,
		Legs: []Leg{
			{Side: Sell, OptionType: option.Put, Strike: shortStrike, Quantity: 1},
			{Side: Buy, OptionType: option.Put, Strike: longStrike, Quantity: 1},
		},
		MaxProfit:              credit,
		MaxRisk:                maxRisk,
		POP:                    popFromDelta(shortQ),
		Description:            "Bull put spread, short below spot",
		RequiredLiquidityFloor: g.cfg.RequiredLiquidityFloor,
	}, true
}

func (g *Generator) buildBearCallSpread(chain *option.Chain, universe []money.Strike, spot, move, deltaShift float64) (Strategy, bool) {
	shortTarget := spot + move + deltaShift
	shortStrike, ok := nearestStrike(universe, shortTarget)
	if !ok {
		return Strategy{}, false
	}
	longStrike := strikeOneStepFurther(universe, shortStrike, 1)

	shortQ, ok := chain.Call(shortStrike)
	if !ok {
		return Strategy{}, false
	}
	longQ, ok := chain.Call(longStrike)
	if !ok {
		return Strategy{}, false
	}

	if !g.legLiquidityOK(chain, struct {
		strike money.Strike
		typ    option.Type
	}{shortStrike, option.Call}, struct {
		strike money.Strike
		typ    option.Type
	}{longStrike, option.Call}) {
		return Strategy{}, false
	}

	credit := shortQ.Mid().Sub(longQ.Mid())
	width := money.NewMoney(abs(longStrike.Float64() - shortStrike.Float64()))
	maxRisk := width.Sub(credit)

	return Strategy{
		Type: BearCallSpread,
		Legs: []Leg{
			{Side: Sell, OptionType: option.Call, Strike: shortStrike, Quantity: 1},
			{Side: Buy, OptionType: option.Call, Strike: longStrike, Quantity: 1},
		},
		MaxProfit:              credit,
		MaxRisk:                maxRisk,
		POP:                    popFromDelta(shortQ),
		Description:            "Bear call spread, short above spot",
		RequiredLiquidityFloor: g.cfg.RequiredLiquidityFloor,
	}, true
}

func (g *Generator) buildIronCondor(chain *option.Chain, universe []money.Strike, spot, move float64) (Strategy, bool) {
	shortPut, ok := nearestStrike(universe, spot-move)
	if !ok {
		return Strategy{}, false
	}
	shortCall, ok := nearestStrike(universe, spot+move)
	if !ok {
		return Strategy{}, false
	}
	longPut := strikeOneStepFurther(universe, shortPut, -1)
	longCall := strikeOneStepFurther(universe, shortCall, 1)

	shortPutQ, ok1 := chain.Put(shortPut)
	longPutQ, ok2 := chain.Put(longPut)
	shortCallQ, ok3 := chain.Call(shortCall)
	longCallQ, ok4 := chain.Call(longCall)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Strategy{}, false
	}

	if !g.legLiquidityOK(chain,
		struct {
			strike money.Strike
			typ    option.Type
		}{shortPut, option.Put},
		struct {
			strike money.Strike
			typ    option.Type
		}{longPut, option.Put},
		struct {
			strike money.Strike
			typ    option.Type
		}{shortCall, option.Call},
		struct {
			strike money.Strike
			typ    option.Type
		}{longCall, option.Call},
	) {
		return Strategy{}, false
	}

	credit := shortPutQ.Mid().Sub(longPutQ.Mid()).Add(shortCallQ.Mid().Sub(longCallQ.Mid()))
	putWidth := abs(shortPut.Float64() - longPut.Float64())
	callWidth := abs(longCall.Float64() - shortCall.Float64())
	maxWidth := putWidth
	if callWidth > maxWidth {
		maxWidth = callWidth
	}
	maxRisk := money.NewMoney(maxWidth).Sub(credit)

	return Strategy{
		Type: IronCondor,
		Legs: []Leg{
			{Side: Sell, OptionType: option.Put, Strike: shortPut, Quantity: 1},
			{Side: Buy, OptionType: option.Put, Strike: longPut, Quantity: 1},
			{Side: Sell, OptionType: option.Call, Strike: shortCall, Quantity: 1},
			{Side: Buy, OptionType: option.Call, Strike: longCall, Quantity: 1},
		},
		MaxProfit:              credit,
		MaxRisk:                maxRisk,
		POP:                    popFromWidth(move, putWidth, callWidth),
		Description:            "Iron condor, shorts at +/- implied move",
		RequiredLiquidityFloor: g.cfg.RequiredLiquidityFloor,
	}, true
}

func (g *Generator) buildIronButterfly(chain *option.Chain, universe []money.Strike, spot float64) (Strategy, bool) {
	center, ok := nearestStrike(universe, spot)
	if !ok {
		return Strategy{}, false
	}
	longPut := strikeOneStepFurther(universe, center, -1)
	longCall := strikeOneStepFurther(universe, center, 1)

	shortPutQ, ok1 := chain.Put(center)
	shortCallQ, ok2 := chain.Call(center)
	longPutQ, ok3 := chain.Put(longPut)
	longCallQ, ok4 := chain.Call(longCall)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Strategy{}, false
	}

	if !g.legLiquidityOK(chain,
		struct {
			strike money.Strike
			typ    option.Type
		}{center, option.Put},
		struct {
			strike money.Strike
			typ    option.Type
		}{center, option.Call},
		struct {
			strike money.Strike
			typ    option.Type
		}{longPut, option.Put},
		struct {
			strike money.Strike
			typ    option.Type
		}{longCall, option.Call},
	) {
		return Strategy{}, false
	}

	credit := shortPutQ.Mid().Add(shortCallQ.Mid()).Sub(longPutQ.Mid()).Sub(longCallQ.Mid())
	putWidth := abs(center.Float64() - longPut.Float64())
	callWidth := abs(longCall.Float64() - center.Float64())
	maxWidth := putWidth
	if callWidth > maxWidth {
		maxWidth = callWidth
	}
	maxRisk := money.NewMoney(maxWidth).Sub(credit)

	return Strategy{
		Type: IronButterfly,
		Legs: []Leg{
			{Side: Sell, OptionType: option.Put, Strike: center, Quantity: 1},
			{Side: Sell, OptionType: option.Call, Strike: center, Quantity: 1},
			{Side: Buy, OptionType: option.Put, Strike: longPut, Quantity: 1},
			{Side: Buy, OptionType: option.Call, Strike: longCall, Quantity: 1},
		},
		MaxProfit:              credit,
		MaxRisk:                maxRisk,
		POP:                    0.5, // ATM short strikes: roughly coin-flip probability of pinning
		Description:            "Iron butterfly, shorts at spot",
		RequiredLiquidityFloor: g.cfg.RequiredLiquidityFloor,
	}, true
}

// popFromDelta estimates probability of profit for a single short leg from
// its delta, when available; falls back to a fixed conservative estimate.
func popFromDelta(q option.Quote) float64 {
	if q.Greeks == nil {
		return 0.65
	}
	return 1 - abs(q.Greeks.Delta)
}

// popFromWidth estimates POP for a condor from the ratio of its average
// wing width to the implied move. The iron condor always uses it; short-leg
// delta data is not consulted.
func popFromWidth(move, putWidth, callWidth float64) float64 {
	if move <= 0 {
		return 0.5
	}
	span := (putWidth + callWidth) / 2
	ratio := span / move
	est := 0.5 + 0.1*ratio
	if est > 0.95 {
		est = 0.95
	}
	if est < 0.05 {
		est = 0.05
	}
	return est
}

