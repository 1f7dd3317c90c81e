// Package config loads and validates the scanner's configuration, using the
// same layered discipline as the teacher's bot config: os.ReadFile ->
// os.ExpandEnv -> yaml.v3 decode with KnownFields(true) -> Normalize() ->
// Validate(). Invalid configuration is a CONFIGURATION error that fails the
// process at startup and is never retried (§7).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/vrpscanner/internal/historical"
)

const (
	defaultMinQuarters       = 4
	defaultConcurrency       = 10
	defaultDailyCallCap      = 500
	defaultBreakerThreshold  = 5
	defaultBreakerRecovery   = 60 * time.Second
	defaultRetryMaxRetries   = 3
	defaultRetryBaseDelay    = 500 * time.Millisecond
	defaultRateLimitCapacity = 60
	defaultRateLimitRefill   = 1.0
)

// Config is the complete scanner configuration.
type Config struct {
	Environment EnvironmentConfig           `yaml:"environment"`
	Universe    UniverseConfig              `yaml:"universe"`
	Providers   ProvidersConfig             `yaml:"providers"`
	Cache       CacheConfig                 `yaml:"cache"`
	RateLimits  map[string]RateLimitConfig  `yaml:"rate_limits"`
	Breakers    map[string]BreakerConfig    `yaml:"breakers"`
	Retry       RetryConfig                 `yaml:"retry"`
	Budget      BudgetConfig                `yaml:"budget"`
	Scoring     ScoringConfig               `yaml:"scoring"`
	Strategy    StrategyConfig              `yaml:"strategy"`
	TailRisk    TailRiskConfig              `yaml:"tail_risk"`
	Scheduler   SchedulerConfig             `yaml:"scheduler"`
	Storage     StorageConfig               `yaml:"storage"`
	HTTP        HTTPConfig                  `yaml:"http"`
}

// EnvironmentConfig controls logging verbosity and run mode.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // dry_run | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// UniverseConfig selects which tickers a scan covers.
type UniverseConfig struct {
	Tickers          []string `yaml:"tickers"`           // explicit list; empty means "derive from earnings calendar"
	DateWindowDays   int      `yaml:"date_window_days"`  // scan [today, today+N]
	Concurrency      int64    `yaml:"concurrency"`       // orchestrator width M
	MinQuarters      int      `yaml:"min_quarters"`
	HistoricalMetric string   `yaml:"historical_metric"` // close | gap | intraday
	ExpirationOffset int      `yaml:"expiration_offset_days"`
	VIXTicker        string   `yaml:"vix_ticker"` // quote symbol consulted for VIX-regime context
}

// ProvidersConfig carries credentials and endpoints for each market-data
// collaborator the Composite provider routes to.
type ProvidersConfig struct {
	Tradier TradierConfig `yaml:"tradier"`
	Finnhub FinnhubConfig `yaml:"finnhub"`
	LLM     LLMConfig     `yaml:"llm_sentiment"`
}

// TradierConfig configures the quote/chain/history provider.
type TradierConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Paper   bool   `yaml:"paper"`
}

// FinnhubConfig configures the earnings-calendar provider.
type FinnhubConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LLMConfig configures the budget-gated sentiment provider.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// CacheConfig carries TTL/size per named cache (fundamentals, sentiment, vrp).
type CacheConfig struct {
	FundamentalsTTL  time.Duration `yaml:"fundamentals_ttl"`
	FundamentalsSize int           `yaml:"fundamentals_size"`
	SentimentTTL     time.Duration `yaml:"sentiment_ttl"`
	SentimentSize    int           `yaml:"sentiment_size"`
	VRPTTL           time.Duration `yaml:"vrp_ttl"`
	VRPSize          int           `yaml:"vrp_size"`
}

// RateLimitConfig is a token-bucket {capacity, refill} pair, one per provider.
type RateLimitConfig struct {
	Capacity int     `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

// BreakerConfig is a circuit breaker {failure_threshold, recovery_timeout}
// pair, one per provider.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

// RetryConfig bounds retry attempts shared across providers.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// BudgetConfig caps daily calls and monthly dollar spend, keyed by service name.
type BudgetConfig struct {
	Services map[string]ServiceBudget `yaml:"services"`
}

// ServiceBudget is one service's caps.
type ServiceBudget struct {
	DailyCalls    int64   `yaml:"daily_calls"`
	MonthlyBudget float64 `yaml:"monthly_budget"`
}

// ScoringConfig selects the VRP threshold profile and composite weights.
type ScoringConfig struct {
	Profile string  `yaml:"profile"` // aggressive | conservative
	VRP     float64 `yaml:"vrp_weight"`
	Consistency float64 `yaml:"consistency_weight"`
	Skew    float64 `yaml:"skew_weight"`
	Liquidity float64 `yaml:"liquidity_weight"`
}

// StrategyConfig configures the strike-selection generator.
type StrategyConfig struct {
	DeltaShiftWeak     float64 `yaml:"delta_shift_weak"`
	DeltaShiftModerate float64 `yaml:"delta_shift_moderate"`
	DeltaShiftStrong   float64 `yaml:"delta_shift_strong"`
	LiquidityFloor     string  `yaml:"liquidity_floor"` // EXCELLENT|GOOD|WARNING|REJECT
	PositionSize       int64   `yaml:"position_size"`
}

// TailRiskConfig holds position caps per tail-risk level. The values are
// decoded and defaulted, but the tail-risk limiter (signal.ComputeTailRisk)
// applies its own fixed caps and does not read these fields.
type TailRiskConfig struct {
	NormalMaxContracts int     `yaml:"normal_max_contracts"`
	NormalMaxNotional  float64 `yaml:"normal_max_notional"`
	HighMaxContracts   int     `yaml:"high_max_contracts"`
	HighMaxNotional    float64 `yaml:"high_max_notional"`
}

// SchedulerConfig carries the dispatcher's zone and per-job timeout.
type SchedulerConfig struct {
	Zone           string        `yaml:"zone"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
}

// StorageConfig points at the relational and replicated-blob backends.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	S3Bucket   string `yaml:"s3_bucket"` // decoded only; the app does not construct a blob store from it
}

// HTTPConfig configures the optional HTTP surface's auth and port.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	APIKey  string `yaml:"api_key"`
}

// Load reads, expands, decodes, normalizes, and validates configPath.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is an operator-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", configPath, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", configPath, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Normalize fills in defaults for anything left unset.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Environment.Mode) == "" {
		c.Environment.Mode = "dry_run"
	}
	if strings.TrimSpace(c.Environment.LogLevel) == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Universe.DateWindowDays == 0 {
		c.Universe.DateWindowDays = 5
	}
	if c.Universe.Concurrency == 0 {
		c.Universe.Concurrency = defaultConcurrency
	}
	if c.Universe.MinQuarters == 0 {
		c.Universe.MinQuarters = defaultMinQuarters
	}
	if strings.TrimSpace(c.Universe.HistoricalMetric) == "" {
		c.Universe.HistoricalMetric = string(historical.MetricClose)
	}
	if c.Universe.ExpirationOffset == 0 {
		c.Universe.ExpirationOffset = 30
	}
	if strings.TrimSpace(c.Universe.VIXTicker) == "" {
		c.Universe.VIXTicker = "VIX"
	}

	if c.Cache.FundamentalsTTL == 0 {
		c.Cache.FundamentalsTTL = 15 * time.Minute
	}
	if c.Cache.FundamentalsSize == 0 {
		c.Cache.FundamentalsSize = 1000
	}
	if c.Cache.SentimentTTL == 0 {
		c.Cache.SentimentTTL = 24 * time.Hour
	}
	if c.Cache.SentimentSize == 0 {
		c.Cache.SentimentSize = 1000
	}
	if c.Cache.VRPTTL == 0 {
		c.Cache.VRPTTL = time.Hour
	}
	if c.Cache.VRPSize == 0 {
		c.Cache.VRPSize = 1000
	}

	if c.RateLimits == nil {
		c.RateLimits = make(map[string]RateLimitConfig)
	}
	for _, name := range []string{"tradier", "finnhub", "llm_sentiment"} {
		rl := c.RateLimits[name]
		if rl.Capacity == 0 {
			rl.Capacity = defaultRateLimitCapacity
		}
		if rl.RefillPerSec == 0 {
			rl.RefillPerSec = defaultRateLimitRefill
		}
		c.RateLimits[name] = rl
	}

	if c.Breakers == nil {
		c.Breakers = make(map[string]BreakerConfig)
	}
	for _, name := range []string{"tradier", "finnhub", "llm_sentiment"} {
		b := c.Breakers[name]
		if b.FailureThreshold == 0 {
			b.FailureThreshold = defaultBreakerThreshold
		}
		if b.RecoveryTimeout == 0 {
			b.RecoveryTimeout = defaultBreakerRecovery
		}
		c.Breakers[name] = b
	}

	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = defaultRetryMaxRetries
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaultRetryBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}

	if c.Budget.Services == nil {
		c.Budget.Services = make(map[string]ServiceBudget)
	}
	if sb, ok := c.Budget.Services["llm_sentiment"]; !ok || sb.DailyCalls == 0 {
		sb.DailyCalls = defaultDailyCallCap
		if sb.MonthlyBudget == 0 {
			sb.MonthlyBudget = 50.0
		}
		c.Budget.Services["llm_sentiment"] = sb
	}

	if strings.TrimSpace(c.Scoring.Profile) == "" {
		c.Scoring.Profile = "aggressive"
	}
	if c.Scoring.VRP == 0 && c.Scoring.Consistency == 0 && c.Scoring.Skew == 0 && c.Scoring.Liquidity == 0 {
		c.Scoring.VRP = 0.55
		c.Scoring.Consistency = 0.15
		c.Scoring.Skew = 0.10
		c.Scoring.Liquidity = 0.20
	}

	if c.Strategy.DeltaShiftWeak == 0 {
		c.Strategy.DeltaShiftWeak = 2
	}
	if c.Strategy.DeltaShiftModerate == 0 {
		c.Strategy.DeltaShiftModerate = 5
	}
	if c.Strategy.DeltaShiftStrong == 0 {
		c.Strategy.DeltaShiftStrong = 10
	}
	if strings.TrimSpace(c.Strategy.LiquidityFloor) == "" {
		c.Strategy.LiquidityFloor = "WARNING"
	}
	if c.Strategy.PositionSize == 0 {
		c.Strategy.PositionSize = 1
	}

	if c.TailRisk.NormalMaxContracts == 0 {
		c.TailRisk.NormalMaxContracts = 100
	}
	if c.TailRisk.NormalMaxNotional == 0 {
		c.TailRisk.NormalMaxNotional = 50000
	}
	if c.TailRisk.HighMaxContracts == 0 {
		c.TailRisk.HighMaxContracts = 50
	}
	if c.TailRisk.HighMaxNotional == 0 {
		c.TailRisk.HighMaxNotional = 25000
	}

	if strings.TrimSpace(c.Scheduler.Zone) == "" {
		c.Scheduler.Zone = "America/New_York"
	}
	if c.Scheduler.JobTimeout == 0 {
		c.Scheduler.JobTimeout = 5 * time.Minute
	}

	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		c.Storage.SQLitePath = "vrpscanner.db"
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
}

// Validate checks every field for internal consistency, failing with a
// descriptive error on the first problem found.
func (c *Config) Validate() error {
	if c.Environment.Mode != "dry_run" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'dry_run' or 'live'")
	}
	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of: debug, info, warn, error")
	}

	if c.Universe.DateWindowDays <= 0 {
		return fmt.Errorf("universe.date_window_days must be > 0")
	}
	if c.Universe.Concurrency <= 0 {
		return fmt.Errorf("universe.concurrency must be > 0")
	}
	if c.Universe.MinQuarters <= 0 {
		return fmt.Errorf("universe.min_quarters must be > 0")
	}
	switch historical.MoveMetric(c.Universe.HistoricalMetric) {
	case historical.MetricClose, historical.MetricGap, historical.MetricIntraday:
	default:
		return fmt.Errorf("universe.historical_metric must be one of: close, gap, intraday")
	}

	if strings.TrimSpace(c.Providers.Tradier.APIKey) == "" {
		return fmt.Errorf("providers.tradier.api_key is required")
	}
	if strings.TrimSpace(c.Providers.Finnhub.APIKey) == "" {
		return fmt.Errorf("providers.finnhub.api_key is required")
	}

	if c.Cache.FundamentalsTTL <= 0 || c.Cache.SentimentTTL <= 0 || c.Cache.VRPTTL <= 0 {
		return fmt.Errorf("cache TTLs must all be > 0")
	}

	for name, rl := range c.RateLimits {
		if rl.Capacity <= 0 || rl.RefillPerSec <= 0 {
			return fmt.Errorf("rate_limits.%s must have capacity > 0 and refill_per_sec > 0", name)
		}
	}
	for name, b := range c.Breakers {
		if b.FailureThreshold == 0 || b.RecoveryTimeout <= 0 {
			return fmt.Errorf("breakers.%s must have failure_threshold > 0 and recovery_timeout > 0", name)
		}
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be > 0")
	}

	switch strings.ToLower(c.Scoring.Profile) {
	case "aggressive", "conservative":
	default:
		return fmt.Errorf("scoring.profile must be 'aggressive' or 'conservative'")
	}
	sum := c.Scoring.VRP + c.Scoring.Consistency + c.Scoring.Skew + c.Scoring.Liquidity
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	switch strings.ToUpper(c.Strategy.LiquidityFloor) {
	case "EXCELLENT", "GOOD", "WARNING", "REJECT":
	default:
		return fmt.Errorf("strategy.liquidity_floor must be one of: EXCELLENT, GOOD, WARNING, REJECT")
	}
	if c.Strategy.PositionSize <= 0 {
		return fmt.Errorf("strategy.position_size must be > 0")
	}

	if _, err := time.LoadLocation(c.Scheduler.Zone); err != nil {
		return fmt.Errorf("scheduler.zone invalid: %w", err)
	}

	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		return fmt.Errorf("storage.sqlite_path is required")
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}

	return nil
}

// IsLiveMode reports whether live (vs. dry-run) external side effects are enabled.
func (c *Config) IsLiveMode() bool {
	return c.Environment.Mode == "live"
}
