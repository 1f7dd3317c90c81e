package orchestrator

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/anomaly"
	"github.com/eddiefleurent/vrpscanner/internal/cache"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
	"github.com/eddiefleurent/vrpscanner/internal/provider/providertest"
	"github.com/eddiefleurent/vrpscanner/internal/ratelimit"
	"github.com/eddiefleurent/vrpscanner/internal/score"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
	"github.com/eddiefleurent/vrpscanner/internal/strategy"
)

func testChain(ticker string, expiration time.Time) *option.Chain {
	chain := option.NewChain(ticker, expiration, money.NewMoney(100))
	for _, strike := range []float64{90, 95, 100, 105, 110} {
		s := money.NewStrike(strike)
		chain.AddQuote(option.Quote{
			Strike: s, Type: option.Call,
			Bid: money.NewMoney(4.8), Ask: money.NewMoney(5.0),
			OpenInterest: 500, Volume: 100,
		})
		chain.AddQuote(option.Quote{
			Strike: s, Type: option.Put,
			Bid: money.NewMoney(4.7), Ask: money.NewMoney(4.9),
			OpenInterest: 500, Volume: 100,
		})
	}
	return chain
}

func testMoves(ticker string) []historical.Move {
	moves := make([]historical.Move, 0, 8)
	for i := 0; i < 8; i++ {
		moves = append(moves, historical.Move{
			Ticker:          ticker,
			EarningsDate:    time.Date(2025, time.January, 1+i, 0, 0, 0, 0, time.UTC),
			PrevClose:       100,
			EarningsClose:   103,
			CloseMovePct:    3.0,
			GapMovePct:      2.5,
			IntradayMovePct: 4.0,
		})
	}
	return moves
}

func testDeps(mock *providertest.Mock) PipelineDeps {
	weights := score.Weights{VRP: 0.4, Consistency: 0.2, Skew: 0.2, Liquidity: 0.2}
	return PipelineDeps{
		Provider:         mock,
		Limiter:          ratelimit.NewLimiter(100, 100),
		Breaker:          ratelimit.NewBreaker("test", ratelimit.DefaultBreakerConfig()),
		Retry:            ratelimit.RetryConfig{MaxRetries: 0},
		ChainCache:       cache.New(time.Minute, 10),
		SentimentCache:   cache.New(time.Minute, 10),
		VRPTiers:         signal.DefaultThresholds(),
		SkewThresholds:   signal.DefaultSkewThresholds(),
		ScoreWeights:     weights,
		StrategyConfig: strategy.Config{
			DeltaShiftWeak:         1,
			DeltaShiftModerate:     2,
			DeltaShiftStrong:       3,
			RequiredLiquidityFloor: signal.TierReject,
			PositionSize:           1,
		},
		PositionSize:     1,
		MinQuarters:      4,
		HistoricalMetric: historical.MetricClose,
		ExpirationOffset: 30,
		Logger:           log.New(log.Writer(), "test ", 0),
		Now:              func() time.Time { return time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestBuildPipelineProducesOpportunity(t *testing.T) {
	mock := providertest.NewMock()
	mock.Chains["ACME"] = testChain("ACME", time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC))
	mock.Moves["ACME"] = testMoves("ACME")
	mock.Sentiments["ACME"] = provider.Sentiment{Direction: provider.Bullish, Score: 0.5}

	pipeline := BuildPipeline(testDeps(mock))
	target := Target{Ticker: "ACME", EarningsDate: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)}

	opp, err := pipeline(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.Ticker != "ACME" {
		t.Fatalf("expected ticker ACME, got %s", opp.Ticker)
	}
	if opp.Recommendation == "" {
		t.Fatalf("expected a non-empty final recommendation")
	}
	if opp.Sentiment == nil || opp.Sentiment.Direction != provider.Bullish {
		t.Fatalf("expected bullish sentiment to flow through, got %+v", opp.Sentiment)
	}
}

func TestBuildPipelinePropagatesNoDataOnMissingChain(t *testing.T) {
	mock := providertest.NewMock()
	pipeline := BuildPipeline(testDeps(mock))
	target := Target{Ticker: "MISSING", EarningsDate: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)}

	_, err := pipeline(context.Background(), target)
	if err == nil {
		t.Fatal("expected an error for a ticker with no configured chain")
	}
}

func TestBuildPipelineRejectsThinLiquidity(t *testing.T) {
	mock := providertest.NewMock()
	expiration := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	chain := option.NewChain("THIN", expiration, money.NewMoney(100))
	for _, strike := range []float64{90, 95, 100, 105, 110} {
		s := money.NewStrike(strike)
		chain.AddQuote(option.Quote{Strike: s, Type: option.Call, Bid: money.NewMoney(1), Ask: money.NewMoney(9), OpenInterest: 1, Volume: 0})
		chain.AddQuote(option.Quote{Strike: s, Type: option.Put, Bid: money.NewMoney(1), Ask: money.NewMoney(9), OpenInterest: 1, Volume: 0})
	}
	mock.Chains["THIN"] = chain
	mock.Moves["THIN"] = testMoves("THIN")

	pipeline := BuildPipeline(testDeps(mock))
	target := Target{Ticker: "THIN", EarningsDate: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)}

	opp, err := pipeline(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.Recommendation != anomaly.DoNotTrade {
		t.Fatalf("expected DO_NOT_TRADE on rejected liquidity, got %s", opp.Recommendation)
	}
}
