package signal

import (
	"math"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
)

// Recommendation is the VRP tier classification.
type Recommendation string

const (
	Excellent Recommendation = "EXCELLENT"
	Good      Recommendation = "GOOD"
	Marginal  Recommendation = "MARGINAL"
	Skip      Recommendation = "SKIP"
)

// Thresholds configures the VRP classification bands and minimum sample size (§4.6).
type Thresholds struct {
	ExcellentRatio float64
	GoodRatio      float64
	MarginalRatio  float64
	MinQuarters    int
	Metric         historical.MoveMetric
}

// DefaultThresholds are the design's stated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{ExcellentRatio: 7.0, GoodRatio: 4.0, MarginalRatio: 1.5, MinQuarters: 4, Metric: historical.MetricClose}
}

// ConservativeThresholds is the alternative lower-bar profile named in §4.6.
func ConservativeThresholds() Thresholds {
	return Thresholds{ExcellentRatio: 2.0, GoodRatio: 1.5, MarginalRatio: 1.2, MinQuarters: 4, Metric: historical.MetricClose}
}

// VRPResult is the output of the VRP calculator.
type VRPResult struct {
	Ticker              string
	ImpliedMovePct      float64
	HistoricalMeanPct   float64
	HistoricalMedianPct float64
	HistoricalStdPct    float64
	VRPRatio            float64
	EdgeScore           float64
	Recommendation      Recommendation
	QuartersOfData      int
}

// ComputeVRP compares im against moves (most-recent-first) under thresholds.
func ComputeVRP(ticker string, impliedMovePct float64, moves []historical.Move, t Thresholds) (*VRPResult, error) {
	if len(moves) < t.MinQuarters {
		return nil, apperr.New(apperr.KindNoData, "signal.ComputeVRP", "insufficient historical quarters")
	}

	pcts := historical.Pcts(moves, t.Metric)
	mean := historical.Mean(pcts)
	if mean <= 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeVRP", "historical mean move is non-positive or non-finite")
	}
	median := historical.Median(pcts)
	std := historical.StdDev(pcts)

	vrpRatio := impliedMovePct / mean

	mad := historical.MAD(pcts)
	var consistency float64
	if median != 0 {
		consistency = mad / median
	}
	if consistency < 0 {
		consistency = 0
	}

	edgeScore := vrpRatio / (1 + consistency)

	var rec Recommendation
	switch {
	case vrpRatio >= t.ExcellentRatio:
		rec = Excellent
	case vrpRatio >= t.GoodRatio:
		rec = Good
	case vrpRatio >= t.MarginalRatio:
		rec = Marginal
	default:
		rec = Skip
	}

	return &VRPResult{
		Ticker:              ticker,
		ImpliedMovePct:      impliedMovePct,
		HistoricalMeanPct:   mean,
		HistoricalMedianPct: median,
		HistoricalStdPct:    std,
		VRPRatio:            vrpRatio,
		EdgeScore:           edgeScore,
		Recommendation:      rec,
		QuartersOfData:      len(moves),
	}, nil
}
