// Package app wires every component the CLI and HTTP surfaces need into
// one constructed, injected bundle: config, stores, providers, rate
// limiters/breakers, the budget tracker, the orchestrator pipeline, and
// the scheduler's job runners. It plays the role the teacher's cmd/bot's
// main() plays for the trading bot — one place that builds the whole
// object graph at startup — generalized from "one broker client" to
// "several interchangeable providers behind one capability."
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/budget"
	"github.com/eddiefleurent/vrpscanner/internal/cache"
	"github.com/eddiefleurent/vrpscanner/internal/config"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/metrics"
	"github.com/eddiefleurent/vrpscanner/internal/models"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/orchestrator"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
	"github.com/eddiefleurent/vrpscanner/internal/ratelimit"
	"github.com/eddiefleurent/vrpscanner/internal/scheduler"
	"github.com/eddiefleurent/vrpscanner/internal/score"
	"github.com/eddiefleurent/vrpscanner/internal/signal"
	"github.com/eddiefleurent/vrpscanner/internal/storage"
	"github.com/eddiefleurent/vrpscanner/internal/strategy"
	"github.com/sirupsen/logrus"
)

// App bundles every constructed, lifecycle-managed collaborator the CLI
// and HTTP surfaces call into (§9: "hidden process-globals are avoided").
type App struct {
	Cfg     *config.Config
	Logger  *log.Logger
	SLogger *logrus.Logger
	Metrics *metrics.Metrics

	Store    *storage.Store
	Budget   *budget.Tracker
	Provider provider.Provider

	Limiters map[string]*ratelimit.Limiter
	Breakers map[string]*ratelimit.Breaker

	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler

	pipelineDeps orchestrator.PipelineDeps
}

// New loads configPath, opens the relational store, constructs every
// provider/limiter/breaker/cache, and assembles the orchestrator and
// scheduler. Any failure here is a CONFIGURATION error (§7: fail fast at
// process start).
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "app.New", "loading config", err)
	}

	logger := log.New(os.Stderr, "[vrpscanner] ", log.LstdFlags)
	slogger := logrus.New()
	switch cfg.Environment.LogLevel {
	case "debug":
		slogger.SetLevel(logrus.DebugLevel)
	case "warn":
		slogger.SetLevel(logrus.WarnLevel)
	case "error":
		slogger.SetLevel(logrus.ErrorLevel)
	default:
		slogger.SetLevel(logrus.InfoLevel)
	}

	store, err := storage.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "app.New", "opening storage", err)
	}

	tradier := provider.NewTradierProvider(provider.HTTPConfig{
		BaseURL: cfg.Providers.Tradier.BaseURL,
		APIKey:  cfg.Providers.Tradier.APIKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Timeout: 10 * time.Second,
	}, logger)
	finnhub := provider.NewFinnhubProvider(provider.HTTPConfig{
		BaseURL: cfg.Providers.Finnhub.BaseURL,
		APIKey:  cfg.Providers.Finnhub.APIKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Timeout: 10 * time.Second,
	})

	budgetTracker := budget.New(store, defaultPriceTable(), map[string]budget.Limits{
		"llm_sentiment": {
			DailyCalls:    cfg.Budget.Services["llm_sentiment"].DailyCalls,
			MonthlyBudget: money.NewMoney(cfg.Budget.Services["llm_sentiment"].MonthlyBudget),
		},
	})

	var usage provider.UsageCallback = func(output, reasoning, search int64) {
		if err := budgetTracker.Record("llm_sentiment", cfg.Providers.LLM.Model, output, reasoning, search); err != nil {
			logger.Printf("budget record failed: %v", err)
		}
	}
	llmSentiment := provider.NewLLMSentimentProvider(provider.HTTPConfig{
		BaseURL: cfg.Providers.LLM.BaseURL,
		APIKey:  cfg.Providers.LLM.APIKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Timeout: 30 * time.Second,
	}, cfg.Providers.LLM.Model, usage)

	composite := &provider.Composite{
		Quotes:     tradier,
		Chains:     tradier,
		Calendar:   finnhub,
		History:    tradier,
		SentimentP: llmSentiment,
	}

	limiters := map[string]*ratelimit.Limiter{}
	breakers := map[string]*ratelimit.Breaker{}
	for name, rl := range cfg.RateLimits {
		limiters[name] = ratelimit.NewLimiter(rl.Capacity, rl.RefillPerSec)
	}
	for name, b := range cfg.Breakers {
		breakers[name] = ratelimit.NewBreaker(name, ratelimit.BreakerConfig{
			FailureThreshold: b.FailureThreshold,
			RecoveryTimeout:  b.RecoveryTimeout,
		})
	}

	m := metrics.New()

	vrpTiers := signal.DefaultThresholds()
	if cfg.Scoring.Profile == "conservative" {
		vrpTiers = signal.ConservativeThresholds()
	}
	vrpTiers.MinQuarters = cfg.Universe.MinQuarters
	vrpTiers.Metric = historical.MoveMetric(cfg.Universe.HistoricalMetric)

	weights := score.Weights{
		VRP:         cfg.Scoring.VRP,
		Consistency: cfg.Scoring.Consistency,
		Skew:        cfg.Scoring.Skew,
		Liquidity:   cfg.Scoring.Liquidity,
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	stratCfg := strategy.Config{
		DeltaShiftWeak:         int(cfg.Strategy.DeltaShiftWeak),
		DeltaShiftModerate:     int(cfg.Strategy.DeltaShiftModerate),
		DeltaShiftStrong:       int(cfg.Strategy.DeltaShiftStrong),
		RequiredLiquidityFloor: signal.ParseTier(cfg.Strategy.LiquidityFloor),
		PositionSize:           cfg.Strategy.PositionSize,
	}

	deps := orchestrator.PipelineDeps{
		Provider:         composite,
		Limiter:          limiters["tradier"],
		Breaker:          breakers["tradier"],
		Retry: ratelimit.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
		ChainCache:       cache.New(cfg.Cache.FundamentalsTTL, cfg.Cache.FundamentalsSize),
		SentimentCache:   cache.New(cfg.Cache.SentimentTTL, cfg.Cache.SentimentSize),
		VIXCache:         cache.New(cache.VRPTTL, 1),
		VIXTicker:        cfg.Universe.VIXTicker,
		VRPTiers:         vrpTiers,
		SkewThresholds:   signal.DefaultSkewThresholds(),
		ScoreWeights:     weights,
		StrategyConfig:   stratCfg,
		PositionSize:     cfg.Strategy.PositionSize,
		MinQuarters:      cfg.Universe.MinQuarters,
		HistoricalMetric: historical.MoveMetric(cfg.Universe.HistoricalMetric),
		ExpirationOffset: cfg.Universe.ExpirationOffset,
		SentimentBudget:  budgetTracker,
		SentimentService: "llm_sentiment",
		Logger:           logger,
	}

	orch := orchestrator.New(cfg.Universe.Concurrency)

	a := &App{
		Cfg:          cfg,
		Logger:       logger,
		SLogger:      slogger,
		Metrics:      m,
		Store:        store,
		Budget:       budgetTracker,
		Provider:     composite,
		Limiters:     limiters,
		Breakers:     breakers,
		Orchestrator: orch,
		pipelineDeps: deps,
	}

	zone, err := time.LoadLocation(cfg.Scheduler.Zone)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "app.New", "loading scheduler zone", err)
	}
	sched := scheduler.New(zone, scheduler.DefaultTable(), scheduler.DefaultDependencies(), a.jobRunners(), store)
	sched.Timeout = cfg.Scheduler.JobTimeout
	sched.BudgetCheck = func() (budget.Status, error) {
		s, err := budgetTracker.Summary("llm_sentiment")
		if err != nil {
			return budget.StatusExhausted, err
		}
		if !s.CanCall {
			return budget.StatusExhausted, nil
		}
		return budget.StatusOK, nil
	}
	a.Scheduler = sched

	return a, nil
}

// Close releases the store's database handle.
func (a *App) Close() error {
	return a.Store.Close()
}

// pipeline returns the closed-over per-ticker pipeline function, built
// fresh so tests can substitute PipelineDeps without reconstructing App.
func (a *App) pipeline() orchestrator.Pipeline {
	return orchestrator.BuildPipeline(a.pipelineDeps)
}

// Universe resolves the ticker universe for [start, start+days]: the
// configured explicit list if non-empty, otherwise every ticker with an
// earnings date in the window per the calendar provider (§4.13).
func (a *App) Universe(ctx context.Context, start time.Time, days int) ([]orchestrator.Target, error) {
	if len(a.Cfg.Universe.Tickers) > 0 {
		targets := make([]orchestrator.Target, 0, len(a.Cfg.Universe.Tickers))
		for _, t := range a.Cfg.Universe.Tickers {
			targets = append(targets, orchestrator.Target{Ticker: t, EarningsDate: start})
		}
		return targets, nil
	}

	end := start.AddDate(0, 0, days)
	events, err := a.Provider.EarningsCalendar(ctx, start, end)
	if err != nil {
		return nil, err
	}
	targets := make([]orchestrator.Target, 0, len(events))
	for _, e := range events {
		targets = append(targets, orchestrator.Target{Ticker: e.Ticker, EarningsDate: e.Date})
		if err := a.Store.UpsertEarnings(ctx, e.Ticker, e.Date, e.Timing, true); err != nil {
			a.Logger.Printf("failed to persist earnings calendar entry for %s: %v", e.Ticker, err)
		}
	}
	return targets, nil
}

// Scan runs the orchestrator over the universe for [start, start+days] and
// returns the ranked, aggregated result (§4.13); ordering is the
// orchestrator's responsibility.
func (a *App) Scan(ctx context.Context, start time.Time, days int) (*models.ScanResult, error) {
	universe, err := a.Universe(ctx, start, days)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	result, err := a.Orchestrator.Scan(ctx, universe, a.pipeline())
	if err != nil {
		return nil, err
	}
	a.Metrics.ObserveScan(time.Since(began), len(result.Opportunities), len(result.Failures))
	for name, b := range a.Breakers {
		a.Metrics.ObserveBreaker(name, b.State())
	}
	if summary, err := a.Budget.Summary("llm_sentiment"); err == nil {
		remainingCalls := summary.DailyLimit - summary.TodayCalls
		remainingCost := summary.MonthlyBudget.Sub(summary.MonthCost)
		a.Metrics.ObserveBudget("llm_sentiment", float64(remainingCalls), remainingCost.Float64())
	}
	return result, nil
}

// Analyze runs the single-ticker pipeline directly, bypassing the
// orchestrator's fan-out (§6: `analyze TICKER [EARNINGS_DATE]`).
func (a *App) Analyze(ctx context.Context, ticker string, earningsDate time.Time) (models.Opportunity, error) {
	return a.pipeline()(ctx, orchestrator.Target{Ticker: ticker, EarningsDate: earningsDate})
}

// Prime pre-populates the sentiment cache for every ticker with earnings
// in [start, start+days], best-effort per ticker (§6: `prime [START_DATE]`).
func (a *App) Prime(ctx context.Context, start time.Time, days int) (int, error) {
	universe, err := a.Universe(ctx, start, days)
	if err != nil {
		return 0, err
	}
	primed := 0
	for _, t := range universe {
		status, err := a.Budget.Check("llm_sentiment", money.Zero)
		if err != nil || status == budget.StatusExhausted {
			a.Logger.Printf("prime: skipping %s, sentiment budget exhausted", t.Ticker)
			continue
		}
		if _, err := a.Provider.Sentiment(ctx, t.Ticker, t.EarningsDate); err != nil {
			a.Logger.Printf("prime: sentiment failed for %s: %v", t.Ticker, err)
			continue
		}
		primed++
	}
	return primed, nil
}

// ComponentHealth is one named component's health check result.
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Health runs every component's health check (§6: `maintenance health`).
func (a *App) Health(ctx context.Context) []ComponentHealth {
	results := []ComponentHealth{}

	if err := a.Store.Ping(ctx); err != nil {
		results = append(results, ComponentHealth{Name: "storage", Healthy: false, Detail: err.Error()})
	} else {
		results = append(results, ComponentHealth{Name: "storage", Healthy: true})
	}

	summary, err := a.Budget.Summary("llm_sentiment")
	if err != nil {
		results = append(results, ComponentHealth{Name: "budget", Healthy: false, Detail: err.Error()})
	} else {
		results = append(results, ComponentHealth{
			Name:    "budget",
			Healthy: summary.CanCall,
			Detail:  fmt.Sprintf("%d/%d calls today, $%.2f/$%.2f this month", summary.TodayCalls, summary.DailyLimit, summary.MonthCost.Float64(), summary.MonthlyBudget.Float64()),
		})
	}

	for name, b := range a.Breakers {
		state := b.State()
		results = append(results, ComponentHealth{Name: "breaker:" + name, Healthy: state != "open", Detail: state})
	}

	return results
}

// jobRunners binds each scheduler job name to the App method it invokes
// (§4.14).
func (a *App) jobRunners() map[scheduler.JobName]scheduler.Runner {
	return map[scheduler.JobName]scheduler.Runner{
		scheduler.JobPreMarketPrep: func(ctx context.Context) error {
			_, err := a.Prime(ctx, time.Now(), a.Cfg.Universe.DateWindowDays)
			return err
		},
		scheduler.JobSentimentScan: func(ctx context.Context) error {
			_, err := a.Prime(ctx, time.Now(), a.Cfg.Universe.DateWindowDays)
			return err
		},
		scheduler.JobWhisperScan: func(ctx context.Context) error {
			_, err := a.Scan(ctx, time.Now(), a.Cfg.Universe.DateWindowDays)
			return err
		},
		scheduler.JobEODDigest: func(ctx context.Context) error {
			_, err := a.Scan(ctx, time.Now(), a.Cfg.Universe.DateWindowDays)
			return err
		},
		scheduler.JobWeeklyBackfill: func(ctx context.Context) error {
			return a.backfillHistory(ctx)
		},
	}
}

// backfillHistory fetches and persists the latest historical move for every
// configured ticker, feeding future VRP calculations (§6: weekly backfill).
func (a *App) backfillHistory(ctx context.Context) error {
	for _, ticker := range a.Cfg.Universe.Tickers {
		moves, err := a.Provider.HistoricalMoves(ctx, ticker, 1)
		if err != nil {
			a.Logger.Printf("backfill: %s: %v", ticker, err)
			continue
		}
		for _, m := range moves {
			if err := a.Store.AppendMove(ctx, m); err != nil {
				a.Logger.Printf("backfill: persisting move for %s: %v", ticker, err)
			}
		}
	}
	return nil
}

// defaultPriceTable is the fixed, invoice-verified pricing table for the
// LLM sentiment service (§4.4). Figures mirror the provider's published
// per-token rate card at time of writing; operators overriding the model
// should update this table to match their actual invoice.
func defaultPriceTable() budget.PriceTable {
	return budget.PriceTable{
		{Service: "llm_sentiment", Model: "gpt-4o-mini", Class: budget.ClassOutput}:        money.NewMoney(0.0000006),
		{Service: "llm_sentiment", Model: "gpt-4o-mini", Class: budget.ClassReasoning}:     money.NewMoney(0.0000006),
		{Service: "llm_sentiment", Model: "gpt-4o-mini", Class: budget.ClassSearchRequest}: money.NewMoney(0.0275),
	}
}
