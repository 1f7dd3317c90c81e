// Package score combines the signal engine's component scores into the
// composite opportunity score and sentiment-adjusted final score (§4.10).
package score

import (
	"math"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
)

// Weights configures the composite's weighted sum; must sum to 1.
type Weights struct {
	VRP         float64
	Consistency float64
	Skew        float64
	Liquidity   float64
}

// DefaultWeights are the design's stated defaults (§4.10).
func DefaultWeights() Weights {
	return Weights{VRP: 0.55, Consistency: 0.15, Skew: 0.10, Liquidity: 0.20}
}

// Validate asserts the weights sum to 1 (within floating-point tolerance).
func (w Weights) Validate() error {
	sum := w.VRP + w.Consistency + w.Skew + w.Liquidity
	if math.Abs(sum-1.0) > 1e-9 {
		return apperr.New(apperr.KindConfiguration, "score.Weights.Validate", "component weights must sum to 1")
	}
	return nil
}

// Bias describes the side a candidate strategy commits capital to, for
// skew scoring: a bull put spread is BiasBullish, a bear call spread is
// BiasBearish, an iron condor/butterfly (or no candidate) is BiasNeutral.
type Bias string

const (
	BiasNeutral Bias = "neutral"
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

// Result carries the composite and final (sentiment-adjusted) scores plus
// each component for observability.
type Result struct {
	VRPScore         float64
	ConsistencyScore float64
	SkewScore        float64
	LiquidityScore   float64
	Composite        float64
	SentimentScore   float64
	Final            float64
}

// vrpScore maps a vrp_ratio to [0,100] via a piecewise curve that saturates
// near the EXCELLENT threshold rather than growing unbounded.
func vrpScore(ratio float64) float64 {
	const saturationRatio = 10.0
	s := 100 * ratio / saturationRatio
	return money.Clamp(s, 0, 100)
}

// consistencyScore rewards low MAD-derived consistency (tighter
// distributions score higher).
func consistencyScore(consistency float64) float64 {
	s := 100 * (1 - money.Clamp(consistency, 0, 1))
	return money.Clamp(s, 0, 100)
}

// skewScore scores SkewAnalysis favorability given the strategy's intended bias.
func skewScore(skew *signal.SkewAnalysis, intended Bias) float64 {
	if skew == nil {
		return 50 // unknown skew: neutral credit
	}
	if intended == BiasNeutral {
		if skew.IsNeutral() {
			return 100
		}
		return 100 * (1 - skew.BiasConfidence)
	}
	// Directional strategies: the candidate only earns the alignment bonus
	// when its committed side matches the skew's own computed direction.
	aligned := (intended == BiasBullish && skew.IsBullish()) || (intended == BiasBearish && skew.IsBearish())
	if aligned {
		return 60 + 40*skew.BiasConfidence
	}
	return 40
}

// Compute produces the composite and sentiment-adjusted final score.
func Compute(vrp *signal.VRPResult, consistency float64, skew *signal.SkewAnalysis, intended Bias, liquidity signal.Tier, w Weights, sentimentScore float64) (*Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if vrp == nil {
		return nil, apperr.New(apperr.KindInvalid, "score.Compute", "vrp result is required")
	}

	vs := vrpScore(vrp.VRPRatio)
	cs := consistencyScore(consistency)
	ss := skewScore(skew, intended)
	ls := liquidity.Score()

	composite := w.VRP*vs + w.Consistency*cs + w.Skew*ss + w.Liquidity*ls

	clampedSentiment := money.Clamp(sentimentScore, -1, 1)
	final := composite * (1 + 0.15*clampedSentiment)

	return &Result{
		VRPScore:         vs,
		ConsistencyScore: cs,
		SkewScore:        ss,
		LiquidityScore:   ls,
		Composite:        composite,
		SentimentScore:   clampedSentiment,
		Final:            final,
	}, nil
}
