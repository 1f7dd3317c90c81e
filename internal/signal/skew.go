package signal

import (
	"math"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

// DirectionalBias classifies the put-call skew slope into a bias tag (§4.7).
type DirectionalBias string

const (
	StrongBearish DirectionalBias = "STRONG_BEARISH"
	Bearish       DirectionalBias = "BEARISH"
	WeakBearish   DirectionalBias = "WEAK_BEARISH"
	NeutralBias   DirectionalBias = "NEUTRAL"
	WeakBullish   DirectionalBias = "WEAK_BULLISH"
	BullishBias   DirectionalBias = "BULLISH"
	StrongBullish DirectionalBias = "STRONG_BULLISH"
)

// SkewThresholds configures the slope-magnitude bands (§4.7).
type SkewThresholds struct {
	NeutralMax  float64
	WeakMax     float64
	ModerateMax float64
	ExclBand    float64
	MaxBand     float64
	MinPoints   int
}

// DefaultSkewThresholds match the design's stated defaults.
func DefaultSkewThresholds() SkewThresholds {
	return SkewThresholds{NeutralMax: 30, WeakMax: 80, ModerateMax: 150, ExclBand: 0.02, MaxBand: 0.15, MinPoints: 5}
}

// SkewAnalysis is the output of the skew/directional-bias analyzer.
type SkewAnalysis struct {
	Ticker          string
	StockPrice      float64
	SlopeATM        float64
	SkewATM         float64
	DirectionalBias DirectionalBias
	BiasConfidence  float64
	NumPoints       int
}

// Strength reports the bias magnitude band ("weak", "moderate", "strong", "neutral").
func (s SkewAnalysis) Strength() string {
	switch s.DirectionalBias {
	case NeutralBias:
		return "neutral"
	case WeakBearish, WeakBullish:
		return "weak"
	case Bearish, BullishBias:
		return "moderate"
	case StrongBearish, StrongBullish:
		return "strong"
	default:
		return "neutral"
	}
}

// IsBullish reports whether the bias leans bullish (any strength).
func (s SkewAnalysis) IsBullish() bool {
	return s.DirectionalBias == WeakBullish || s.DirectionalBias == BullishBias || s.DirectionalBias == StrongBullish
}

// IsBearish reports whether the bias leans bearish (any strength).
func (s SkewAnalysis) IsBearish() bool {
	return s.DirectionalBias == WeakBearish || s.DirectionalBias == Bearish || s.DirectionalBias == StrongBearish
}

// IsNeutral reports whether the bias is NEUTRAL.
func (s SkewAnalysis) IsNeutral() bool {
	return s.DirectionalBias == NeutralBias
}

// ComputeSkew fits the put-call IV slope against moneyness for chain and
// classifies the resulting directional bias.
func ComputeSkew(chain *option.Chain, t SkewThresholds) (*SkewAnalysis, error) {
	points := chain.MoneynessQuotes(t.ExclBand, t.MaxBand)
	if len(points) < t.MinPoints {
		return nil, apperr.New(apperr.KindNoData, "signal.ComputeSkew", "insufficient moneyness points for skew regression")
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		callIV, putIV := 0.0, 0.0
		if p.Call.ImpliedVolatility != nil {
			callIV = *p.Call.ImpliedVolatility
		}
		if p.Put.ImpliedVolatility != nil {
			putIV = *p.Put.ImpliedVolatility
		}
		xs[i] = p.Moneyness
		ys[i] = (putIV - callIV) * 100 // IV expressed in percentage points, so slope magnitudes fall in the design's tens-to-hundreds bands
	}

	slope, intercept, rSquared := olsFit(xs, ys)
	skewAtm := intercept // value of the fit line at moneyness=0

	absSlope := math.Abs(slope)
	var bias DirectionalBias
	switch {
	case absSlope <= t.NeutralMax:
		bias = NeutralBias
	case absSlope <= t.WeakMax:
		bias = signedBias(slope, WeakBullish, WeakBearish)
	case absSlope <= t.ModerateMax:
		bias = signedBias(slope, BullishBias, Bearish)
	default:
		bias = signedBias(slope, StrongBullish, StrongBearish)
	}

	return &SkewAnalysis{
		Ticker:          chain.Ticker,
		StockPrice:      chain.StockPrice.Float64(),
		SlopeATM:        slope,
		SkewATM:         skewAtm,
		DirectionalBias: bias,
		BiasConfidence:  math.Max(0, math.Min(1, rSquared)),
		NumPoints:       len(points),
	}, nil
}

func signedBias(slope float64, positive, negative DirectionalBias) DirectionalBias {
	if slope > 0 {
		return positive
	}
	return negative
}

// olsFit returns the ordinary-least-squares slope, intercept, and R² for
// ys regressed on xs.
func olsFit(xs, ys []float64) (slope, intercept, rSquared float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	denom := sumXX - n*meanX*meanX
	if denom == 0 {
		return 0, meanY, 0
	}
	slope = (sumXY - n*meanX*meanY) / denom
	intercept = meanY - slope*meanX

	var ssTot, ssRes float64
	for i := range xs {
		pred := slope*xs[i] + intercept
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	if ssTot == 0 {
		rSquared = 0
	} else {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, intercept, rSquared
}
