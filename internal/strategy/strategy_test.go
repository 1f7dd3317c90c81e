package strategy

import (
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
)

func buildTestChain(spot float64) *option.Chain {
	c := option.NewChain("XYZ", time.Now().AddDate(0, 0, 30), money.NewMoney(spot))
	for _, s := range []float64{80, 85, 90, 95, 100, 105, 110, 115, 120} {
		c.AddQuote(option.Quote{Strike: money.NewStrike(s), Type: option.Call, Bid: money.NewMoney(2.0), Ask: money.NewMoney(2.2), OpenInterest: 500})
		c.AddQuote(option.Quote{Strike: money.NewStrike(s), Type: option.Put, Bid: money.NewMoney(2.0), Ask: money.NewMoney(2.2), OpenInterest: 500})
	}
	return c
}

func TestGenerateNeutralIronCondorOnGoodVRP(t *testing.T) {
	chain := buildTestChain(100)
	im := &signal.ImpliedMove{StraddleCost: money.NewMoney(6.0), StockPrice: money.NewMoney(100)}
	vrp := &signal.VRPResult{Recommendation: signal.Good, VRPRatio: 5.0}

	gen := NewGenerator(DefaultConfig(), nil)
	candidates, err := gen.Generate(chain, im, vrp, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, c := range candidates {
		if c.Type == IronCondor {
			found = true
			if !c.MaxRisk.GreaterThan(money.Zero) && !c.MaxRisk.IsZero() {
				t.Fatalf("expected non-negative max risk")
			}
		}
	}
	if !found {
		t.Fatalf("expected an iron condor candidate for neutral+GOOD VRP, got %+v", candidates)
	}
}

func TestGenerateSkipsOnSkipRecommendation(t *testing.T) {
	chain := buildTestChain(100)
	im := &signal.ImpliedMove{StraddleCost: money.NewMoney(6.0), StockPrice: money.NewMoney(100)}
	vrp := &signal.VRPResult{Recommendation: signal.Skip}

	gen := NewGenerator(DefaultConfig(), nil)
	candidates, err := gen.Generate(chain, im, vrp, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates != nil {
		t.Fatalf("expected no candidates for SKIP recommendation, got %+v", candidates)
	}
}

func TestGenerateBullishProducesBullPutSpread(t *testing.T) {
	chain := buildTestChain(100)
	im := &signal.ImpliedMove{StraddleCost: money.NewMoney(6.0), StockPrice: money.NewMoney(100)}
	vrp := &signal.VRPResult{Recommendation: signal.Good, VRPRatio: 5.0}
	skew := &signal.SkewAnalysis{DirectionalBias: signal.BullishBias, BiasConfidence: 0.8}

	gen := NewGenerator(DefaultConfig(), nil)
	candidates, err := gen.Generate(chain, im, vrp, skew)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Type != BullPutSpread {
		t.Fatalf("expected single bull put spread candidate, got %+v", candidates)
	}
}
