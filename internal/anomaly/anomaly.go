// Package anomaly implements cross-signal guards that flag contradictory
// or suspect opportunity records and derive a final trade recommendation
// (§4.12).
package anomaly

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/signal"
)

// Severity is how serious an anomaly is.
type Severity string

const (
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Type names the rule that produced the anomaly.
type Type string

const (
	StaleData          Type = "stale_data"
	MissingData        Type = "missing_data"
	ExtremeOutlier     Type = "extreme_outlier"
	ConflictingSignals Type = "conflicting_signals"
	VolatilityRegime   Type = "volatility_regime"
)

// Anomaly is one detected condition.
type Anomaly struct {
	Type     Type
	Severity Severity
	Message  string
}

// Recommendation is the final trade-or-not-trade call after anomaly review.
type Recommendation string

const (
	Trade      Recommendation = "TRADE"
	ReduceSize Recommendation = "REDUCE_SIZE"
	DoNotTrade Recommendation = "DO_NOT_TRADE"
)

// Input bundles the signals the detector cross-checks.
type Input struct {
	EarningsDate   time.Time
	Now            time.Time
	ChainCacheAge  time.Duration
	QuartersOfData int
	VRPRatio       float64
	Recommendation signal.Recommendation
	LiquidityTier  signal.Tier
	// VIXRegime is the market-wide volatility regime at scan time, when a
	// VIX quote was available; the zero value means unavailable and is not
	// flagged either way.
	VIXRegime signal.VixRegime
}

// Detect runs every rule against in and returns the anomalies found.
func Detect(in Input) []Anomaly {
	var anomalies []Anomaly

	if in.EarningsDate.Sub(in.Now) <= 7*24*time.Hour && in.ChainCacheAge > 24*time.Hour {
		anomalies = append(anomalies, Anomaly{
			Type:     StaleData,
			Severity: Warning,
			Message:  "option chain cache is stale within 7 days of earnings",
		})
	}

	if in.QuartersOfData < 4 {
		anomalies = append(anomalies, Anomaly{
			Type:     MissingData,
			Severity: Warning,
			Message:  fmt.Sprintf("only %d quarters of historical data available", in.QuartersOfData),
		})
	}

	if in.VRPRatio > 20 {
		anomalies = append(anomalies, Anomaly{
			Type:     ExtremeOutlier,
			Severity: Warning,
			Message:  fmt.Sprintf("VRP ratio %.1f is an extreme outlier", in.VRPRatio),
		})
	}

	if in.VIXRegime == signal.VixExtreme {
		anomalies = append(anomalies, Anomaly{
			Type:     VolatilityRegime,
			Severity: Critical,
			Message:  "market-wide VIX is in the extreme regime (>= 40): new positions not recommended",
		})
	}

	if (in.Recommendation == signal.Excellent || in.Recommendation == signal.Good) && in.LiquidityTier == signal.TierReject {
		severity := Warning
		if in.Recommendation == signal.Excellent {
			severity = Critical
		}
		anomalies = append(anomalies, Anomaly{
			Type:     ConflictingSignals,
			Severity: severity,
			Message:  fmt.Sprintf("%s VRP conflicts with REJECT liquidity", in.Recommendation),
		})
	}

	return anomalies
}

// FinalRecommendation derives the trade-or-not-trade call from anomalies and
// liquidity tier (§4.12).
func FinalRecommendation(anomalies []Anomaly, liquidityTier signal.Tier) Recommendation {
	if liquidityTier == signal.TierReject {
		return DoNotTrade
	}
	hasWarning := false
	for _, a := range anomalies {
		if a.Severity == Critical {
			return DoNotTrade
		}
		hasWarning = true
	}
	if hasWarning {
		return ReduceSize
	}
	return Trade
}
