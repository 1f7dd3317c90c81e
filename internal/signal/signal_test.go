package signal

import (
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

func buildChain(t *testing.T, spot float64) *option.Chain {
	t.Helper()
	c := option.NewChain("XYZ", time.Now().AddDate(0, 0, 30), money.NewMoney(spot))
	c.AddQuote(option.Quote{Strike: money.NewStrike(spot), Type: option.Call, Bid: money.NewMoney(3.00), Ask: money.NewMoney(3.20)})
	c.AddQuote(option.Quote{Strike: money.NewStrike(spot), Type: option.Put, Bid: money.NewMoney(2.80), Ask: money.NewMoney(3.00)})
	return c
}

func TestComputeImpliedMoveScenarioS1(t *testing.T) {
	c := buildChain(t, 100)
	im, err := ComputeImpliedMove(c, time.Now(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if im.StraddleCost.String() != "$6.00" {
		t.Fatalf("expected $6.00 straddle, got %s", im.StraddleCost.String())
	}
	if im.UpperBound.String() != "$106.00" || im.LowerBound.String() != "$94.00" {
		t.Fatalf("unexpected bounds: upper=%s lower=%s", im.UpperBound.String(), im.LowerBound.String())
	}
}

func TestComputeImpliedMoveRejectsPastExpiration(t *testing.T) {
	c := option.NewChain("XYZ", time.Now().AddDate(0, 0, -5), money.NewMoney(100))
	_, err := ComputeImpliedMove(c, time.Now(), nil)
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestComputeVRPClassification(t *testing.T) {
	moves := []historical.Move{
		{CloseMovePct: 2.0}, {CloseMovePct: 2.2}, {CloseMovePct: 1.8}, {CloseMovePct: 2.1},
	}
	result, err := ComputeVRP("XYZ", 15.0, moves, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Recommendation != Excellent {
		t.Fatalf("expected EXCELLENT (ratio >> 7.0), got %s", result.Recommendation)
	}
}

func TestComputeVRPFailsOnNonPositiveMean(t *testing.T) {
	moves := []historical.Move{
		{CloseMovePct: 0}, {CloseMovePct: 0}, {CloseMovePct: 0}, {CloseMovePct: 0},
	}
	_, err := ComputeVRP("XYZ", 5.0, moves, DefaultThresholds())
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected INVALID for zero mean, got %v", err)
	}
}

func TestComputeVRPFailsInsufficientQuarters(t *testing.T) {
	moves := []historical.Move{{CloseMovePct: 2.0}}
	_, err := ComputeVRP("XYZ", 5.0, moves, DefaultThresholds())
	if !apperr.Is(err, apperr.KindNoData) {
		t.Fatalf("expected NODATA, got %v", err)
	}
}

func TestClassifyQuoteWorstOfTwoDimensions(t *testing.T) {
	q := option.Quote{
		Bid:          money.NewMoney(1.00),
		Ask:          money.NewMoney(1.50), // spread 40% -> REJECT
		OpenInterest: 1000,                 // would be EXCELLENT alone
	}
	tier := ClassifyQuote(q, 100)
	if tier != TierReject {
		t.Fatalf("expected overall REJECT (worse of two dimensions), got %s", tier)
	}
}

func TestComputeTailRiskHighLevelHalvesCap(t *testing.T) {
	moves := []historical.Move{
		{CloseMovePct: 1.0}, {CloseMovePct: 1.0}, {CloseMovePct: 10.0}, {CloseMovePct: 1.0},
	}
	limits, err := ComputeTailRisk("XYZ", moves, historical.MetricClose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.TailRiskLevel != TailHigh {
		t.Fatalf("expected HIGH tail risk, got %s", limits.TailRiskLevel)
	}
	if limits.MaxContracts > NormalMaxContracts/2 {
		t.Fatalf("expected HIGH max contracts <= half NORMAL cap, got %d", limits.MaxContracts)
	}
}
