package anomaly

import (
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/signal"
)

func TestDetectStaleDataNearEarnings(t *testing.T) {
	now := time.Now()
	anomalies := Detect(Input{
		EarningsDate:   now.Add(3 * 24 * time.Hour),
		Now:            now,
		ChainCacheAge:  30 * time.Hour,
		QuartersOfData: 8,
		VRPRatio:       5,
		Recommendation: signal.Good,
		LiquidityTier:  signal.TierGood,
	})
	if len(anomalies) != 1 || anomalies[0].Type != StaleData {
		t.Fatalf("expected single stale_data anomaly, got %+v", anomalies)
	}
}

func TestDetectConflictingSignalsCriticalOnExcellent(t *testing.T) {
	anomalies := Detect(Input{
		QuartersOfData: 8,
		VRPRatio:       5,
		Recommendation: signal.Excellent,
		LiquidityTier:  signal.TierReject,
	})
	found := false
	for _, a := range anomalies {
		if a.Type == ConflictingSignals {
			found = true
			if a.Severity != Critical {
				t.Fatalf("expected CRITICAL for EXCELLENT+REJECT, got %s", a.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected conflicting_signals anomaly")
	}
}

func TestDetectExtremeVIXRegimeForcesCriticalAnomaly(t *testing.T) {
	anomalies := Detect(Input{
		QuartersOfData: 8,
		VRPRatio:       5,
		Recommendation: signal.Excellent,
		LiquidityTier:  signal.TierExcellent,
		VIXRegime:      signal.VixExtreme,
	})
	found := false
	for _, a := range anomalies {
		if a.Type == VolatilityRegime {
			found = true
			if a.Severity != Critical {
				t.Fatalf("expected CRITICAL severity for extreme VIX regime, got %s", a.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected volatility_regime anomaly for extreme VIX")
	}
	if rec := FinalRecommendation(anomalies, signal.TierExcellent); rec != DoNotTrade {
		t.Fatalf("expected DO_NOT_TRADE once VIX is extreme even with excellent liquidity, got %s", rec)
	}
}

func TestFinalRecommendationDoNotTradeOnRejectLiquidity(t *testing.T) {
	rec := FinalRecommendation(nil, signal.TierReject)
	if rec != DoNotTrade {
		t.Fatalf("expected DO_NOT_TRADE, got %s", rec)
	}
}

func TestFinalRecommendationReduceSizeOnWarning(t *testing.T) {
	rec := FinalRecommendation([]Anomaly{{Type: MissingData, Severity: Warning}}, signal.TierGood)
	if rec != ReduceSize {
		t.Fatalf("expected REDUCE_SIZE, got %s", rec)
	}
}

func TestFinalRecommendationTradeWhenClean(t *testing.T) {
	rec := FinalRecommendation(nil, signal.TierExcellent)
	if rec != Trade {
		t.Fatalf("expected TRADE, got %s", rec)
	}
}
