package models

import (
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/anomaly"
	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
	"github.com/eddiefleurent/vrpscanner/internal/score"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
	"github.com/eddiefleurent/vrpscanner/internal/strategy"
)

// SentimentSummary is the trimmed sentiment view carried on an Opportunity.
type SentimentSummary struct {
	Direction provider.SentimentDirection
	Score     float64
}

// Opportunity is the per-ticker aggregate record the orchestrator produces,
// ranks, and hands to external sinks (§3).
type Opportunity struct {
	Ticker         string
	EarningsDate   time.Time
	Expiration     time.Time
	ImpliedMove    *signal.ImpliedMove
	VRPResult      *signal.VRPResult
	SkewAnalysis   *signal.SkewAnalysis
	LiquidityTier  signal.Tier
	PositionLimits *signal.PositionLimits
	CompositeScore float64
	Sentiment      *SentimentSummary
	Anomalies      []anomaly.Anomaly
	Strategies     []strategy.Strategy
	Recommendation anomaly.Recommendation
	VIXRegime      signal.VixRegime // zero value means no VIX quote was available
}

// Failures is keyed by ticker for a scan's partial-failure results (§4.13).
type Failures map[string]*apperr.Error

// ScanResult is the orchestrator's aggregated output for one scan.
type ScanResult struct {
	Opportunities []Opportunity
	Failures      Failures
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Compose assembles an Opportunity from its component results.
func Compose(
	ticker string,
	earningsDate time.Time,
	im *signal.ImpliedMove,
	vrp *signal.VRPResult,
	skew *signal.SkewAnalysis,
	liquidity signal.Tier,
	limits *signal.PositionLimits,
	scoreResult *score.Result,
	sentiment *SentimentSummary,
	anomalies []anomaly.Anomaly,
	strategies []strategy.Strategy,
	vixRegime signal.VixRegime,
) Opportunity {
	opp := Opportunity{
		Ticker:         ticker,
		EarningsDate:   earningsDate,
		ImpliedMove:    im,
		VRPResult:      vrp,
		SkewAnalysis:   skew,
		LiquidityTier:  liquidity,
		PositionLimits: limits,
		Sentiment:      sentiment,
		Anomalies:      anomalies,
		Strategies:     strategies,
		Recommendation: anomaly.FinalRecommendation(anomalies, liquidity),
		VIXRegime:      vixRegime,
	}
	if im != nil {
		opp.Expiration = im.Expiration
	}
	if scoreResult != nil {
		opp.CompositeScore = scoreResult.Final
	}
	return opp
}
