package orchestrator

import (
	"context"
	"log"
	"time"

	anomalypkg "github.com/eddiefleurent/vrpscanner/internal/anomaly"
	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/budget"
	"github.com/eddiefleurent/vrpscanner/internal/cache"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/models"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
	"github.com/eddiefleurent/vrpscanner/internal/ratelimit"
	scorepkg "github.com/eddiefleurent/vrpscanner/internal/score"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
	"github.com/eddiefleurent/vrpscanner/internal/strategy"
)

// PipelineDeps bundles every shared, internally-synchronized collaborator
// the per-ticker pipeline needs: caches, rate limiters/breakers, and the
// budget tracker are shared across all tickers in a scan, per §5's
// concurrency model.
type PipelineDeps struct {
	Provider         provider.Provider
	Limiter          *ratelimit.Limiter
	Breaker          *ratelimit.Breaker
	Retry            ratelimit.RetryConfig
	ChainCache       *cache.Cache
	SentimentCache   *cache.Cache
	VIXCache         *cache.Cache
	VIXTicker        string // quote symbol for market-wide VIX context; empty disables the check
	VRPTiers         signal.Thresholds
	SkewThresholds   signal.SkewThresholds
	ScoreWeights     scorepkg.Weights
	StrategyConfig   strategy.Config
	PositionSize     int64
	MinQuarters      int
	HistoricalMetric historical.MoveMetric
	ExpirationOffset int // calendar days from earnings date to target expiration
	SentimentBudget  *budget.Tracker
	SentimentService string
	Logger           *log.Logger
	Now              func() time.Time
}

// BuildPipeline closes over deps to produce a Pipeline function suitable
// for Orchestrator.Scan. This is the concrete realization of the data
// flow's per-ticker chain: [C3 chain+quote] + [C3 history] -> C7 -> C8 ->
// C9 -> C10 -> C11 -> C13 -> C12 -> C14 -> Opportunity. Strategies (C13)
// are generated before scoring (C12) because the skew score uses the
// candidates' committed bias.
func BuildPipeline(deps PipelineDeps) Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return func(ctx context.Context, target Target) (models.Opportunity, error) {
		expiration := target.EarningsDate.AddDate(0, 0, deps.ExpirationOffset)

		chain, chainAge, err := fetchChain(ctx, deps, target.Ticker, expiration)
		if err != nil {
			return models.Opportunity{}, err
		}

		im, err := signal.ComputeImpliedMove(chain, deps.Now(), deps.Logger)
		if err != nil {
			return models.Opportunity{}, err
		}

		moves, err := fetchHistory(ctx, deps, target.Ticker)
		if err != nil {
			return models.Opportunity{}, err
		}

		vrp, err := signal.ComputeVRP(target.Ticker, im.ImpliedMovePct, moves, deps.VRPTiers)
		if err != nil {
			return models.Opportunity{}, err
		}

		skew, err := signal.ComputeSkew(chain, deps.SkewThresholds)
		if err != nil && !apperr.Is(err, apperr.KindNoData) {
			return models.Opportunity{}, err
		}

		liquidityTier := overallChainLiquidity(chain, im, deps.PositionSize)

		limits, err := signal.ComputeTailRisk(target.Ticker, moves, deps.HistoricalMetric)
		if err != nil {
			return models.Opportunity{}, err
		}

		sentiment, sentimentScore := fetchSentiment(ctx, deps, target.Ticker, target.EarningsDate)

		gen := strategy.NewGenerator(deps.StrategyConfig, deps.Logger)
		strategies, err := gen.Generate(chain, im, vrp, skew)
		if err != nil {
			return models.Opportunity{}, err
		}

		consistency := consistencyFromVRP(vrp)
		intendedBias := intendedBiasFromStrategies(strategies)
		scoreResult, err := scorepkg.Compute(vrp, consistency, skew, intendedBias, liquidityTier, deps.ScoreWeights, sentimentScore)
		if err != nil {
			return models.Opportunity{}, err
		}

		vixRegime := fetchVIXRegime(ctx, deps)

		anomalies := anomalypkg.Detect(anomalypkg.Input{
			EarningsDate:   target.EarningsDate,
			Now:            deps.Now(),
			ChainCacheAge:  chainAge,
			QuartersOfData: vrp.QuartersOfData,
			VRPRatio:       vrp.VRPRatio,
			Recommendation: vrp.Recommendation,
			LiquidityTier:  liquidityTier,
			VIXRegime:      vixRegime,
		})

		opp := models.Compose(target.Ticker, target.EarningsDate, im, vrp, skew, liquidityTier, limits, scoreResult, sentiment, anomalies, strategies, vixRegime)
		return opp, nil
	}
}

// chainCacheEntry is what's stored under cache.Cache for an option chain
// lookup, matching the teacher's optionChainCacheEntry{chain, timestamp} shape.
type chainCacheEntry struct {
	chain      *option.Chain
	insertedAt time.Time
}

// Clone implements cache.Cloner: the chain pointer is deep-copied so a
// caller mutating the returned chain never corrupts the cached original.
func (e chainCacheEntry) Clone() any {
	return chainCacheEntry{chain: e.chain.Clone(), insertedAt: e.insertedAt}
}

func fetchChain(ctx context.Context, deps PipelineDeps, ticker string, expiration time.Time) (*option.Chain, time.Duration, error) {
	key := ticker + "|" + expiration.Format("2006-01-02")
	if cached, ok := deps.ChainCache.Get(key); ok {
		entry := cached.(chainCacheEntry)
		return entry.chain, deps.Now().Sub(entry.insertedAt), nil
	}

	var chain *option.Chain
	err := ratelimit.Do(ctx, deps.Retry, func(ctx context.Context) error {
		if err := deps.Limiter.Acquire(ctx); err != nil {
			return err
		}
		result, err := deps.Breaker.Execute(func() (any, error) {
			return deps.Provider.OptionChain(ctx, ticker, expiration)
		})
		if err != nil {
			return err
		}
		chain = result.(*option.Chain)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	deps.ChainCache.Set(key, chainCacheEntry{chain: chain, insertedAt: deps.Now()})
	return chain, 0, nil
}

func fetchHistory(ctx context.Context, deps PipelineDeps, ticker string) ([]historical.Move, error) {
	var moves []historical.Move
	err := ratelimit.Do(ctx, deps.Retry, func(ctx context.Context) error {
		if err := deps.Limiter.Acquire(ctx); err != nil {
			return err
		}
		result, err := deps.Breaker.Execute(func() (any, error) {
			return deps.Provider.HistoricalMoves(ctx, ticker, deps.MinQuarters*2)
		})
		if err != nil {
			return err
		}
		moves = result.([]historical.Move)
		return nil
	})
	return moves, err
}

// fetchSentiment is best-effort: a NODATA or budget-exhausted result
// degrades gracefully to an unscored opportunity rather than failing the
// whole pipeline, since sentiment is an enrichment, not a gate (§4.1).
func fetchSentiment(ctx context.Context, deps PipelineDeps, ticker string, earningsDate time.Time) (*models.SentimentSummary, float64) {
	if deps.SentimentBudget != nil {
		status, err := deps.SentimentBudget.Check(deps.SentimentService, money.Zero)
		if err != nil || status == budget.StatusExhausted {
			return nil, 0
		}
	}

	cacheKey := ticker + "|" + earningsDate.Format("2006-01-02")
	if cached, ok := deps.SentimentCache.Get(cacheKey); ok {
		s := cached.(provider.Sentiment)
		return &models.SentimentSummary{Direction: s.Direction, Score: s.Score}, s.Score
	}

	s, err := deps.Provider.Sentiment(ctx, ticker, earningsDate)
	if err != nil {
		return nil, 0
	}
	deps.SentimentCache.Set(cacheKey, s)
	return &models.SentimentSummary{Direction: s.Direction, Score: s.Score}, s.Score
}

// fetchVIXRegime is best-effort market-wide context: a VIX quote is shared
// across every ticker in a scan, so it's cached independently of the
// per-ticker caches, and a failed/disabled lookup degrades to the zero
// VixRegime rather than failing the pipeline (this context enriches the
// anomaly check, it doesn't gate it).
func fetchVIXRegime(ctx context.Context, deps PipelineDeps) signal.VixRegime {
	if deps.VIXTicker == "" || deps.VIXCache == nil {
		return ""
	}
	if cached, ok := deps.VIXCache.Get(deps.VIXTicker); ok {
		return cached.(signal.VixRegime)
	}

	quote, err := deps.Provider.Quote(ctx, deps.VIXTicker)
	if err != nil {
		return ""
	}
	regime, err := signal.ClassifyVIXRegime(quote.Float64())
	if err != nil {
		return ""
	}
	deps.VIXCache.Set(deps.VIXTicker, regime)
	return regime
}

func overallChainLiquidity(chain *option.Chain, im *signal.ImpliedMove, positionSize int64) signal.Tier {
	call, okCall := chain.Call(im.ATMStrike)
	put, okPut := chain.Put(im.ATMStrike)
	if !okCall || !okPut {
		return signal.TierReject
	}
	return signal.ClassifyLegs([]option.Quote{call, put}, positionSize)
}

// consistencyFromVRP recovers the consistency term from edge_score =
// vrp_ratio / (1 + consistency), since VRPResult only exposes the two
// derived quantities.
func consistencyFromVRP(vrp *signal.VRPResult) float64 {
	if vrp.EdgeScore == 0 {
		return 0
	}
	return vrp.VRPRatio/vrp.EdgeScore - 1
}

// intendedBiasFromStrategies reports which side the generator actually
// committed to: a bull put spread is bullish, a bear call spread is
// bearish, an iron condor/butterfly (or no candidate at all) is neutral.
func intendedBiasFromStrategies(strategies []strategy.Strategy) scorepkg.Bias {
	for _, s := range strategies {
		switch s.Type {
		case strategy.BullPutSpread:
			return scorepkg.BiasBullish
		case strategy.BearCallSpread:
			return scorepkg.BiasBearish
		}
	}
	return scorepkg.BiasNeutral
}
