package score

import (
	"testing"

	"github.com/eddiefleurent/vrpscanner/internal/signal"
)

func TestDefaultWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("expected default weights to sum to 1, got %v", err)
	}
}

func TestWeightsValidateRejectsBadSum(t *testing.T) {
	w := Weights{VRP: 0.5, Consistency: 0.1, Skew: 0.1, Liquidity: 0.1}
	if err := w.Validate(); err == nil {
		t.Fatalf("expected validation error for weights not summing to 1")
	}
}

func TestComputeSentimentModifier(t *testing.T) {
	vrp := &signal.VRPResult{VRPRatio: 8.0, Recommendation: signal.Excellent}
	result, err := Compute(vrp, 0.1, nil, BiasNeutral, signal.TierExcellent, DefaultWeights(), 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedFinal := result.Composite * 1.15
	if diff := result.Final - expectedFinal; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected final = composite * 1.15, got composite=%v final=%v", result.Composite, result.Final)
	}
}

func TestSkewScoreRewardsAlignedDirectionOnly(t *testing.T) {
	bullishSkew := &signal.SkewAnalysis{DirectionalBias: signal.BullishBias, BiasConfidence: 0.8}
	bearishSkew := &signal.SkewAnalysis{DirectionalBias: signal.Bearish, BiasConfidence: 0.8}

	cases := []struct {
		name    string
		skew    *signal.SkewAnalysis
		bias    Bias
		wantMin float64
	}{
		{"bullish candidate matches bullish skew", bullishSkew, BiasBullish, 60},
		{"bearish candidate matches bearish skew", bearishSkew, BiasBearish, 60},
	}
	for _, tc := range cases {
		got := skewScore(tc.skew, tc.bias)
		if got < tc.wantMin {
			t.Fatalf("%s: expected aligned score >= %v, got %v", tc.name, tc.wantMin, got)
		}
	}

	// A bullish candidate against a bearish skew (or vice versa) must NOT
	// earn the alignment bonus — this is the case the placeholder
	// previously could never distinguish.
	if got := skewScore(bearishSkew, BiasBullish); got != 40 {
		t.Fatalf("expected misaligned bullish-vs-bearish score 40, got %v", got)
	}
	if got := skewScore(bullishSkew, BiasBearish); got != 40 {
		t.Fatalf("expected misaligned bearish-vs-bullish score 40, got %v", got)
	}
}

func TestComputeClampsOutOfRangeSentiment(t *testing.T) {
	vrp := &signal.VRPResult{VRPRatio: 8.0}
	result, err := Compute(vrp, 0.1, nil, BiasNeutral, signal.TierExcellent, DefaultWeights(), 5.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SentimentScore != 1.0 {
		t.Fatalf("expected sentiment clamped to 1.0, got %v", result.SentimentScore)
	}
}
