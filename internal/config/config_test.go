package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Environment: EnvironmentConfig{Mode: "dry_run", LogLevel: "info"},
		Universe: UniverseConfig{
			Tickers:        []string{"AAPL", "MSFT"},
			DateWindowDays: 5,
			Concurrency:    10,
		},
		Providers: ProvidersConfig{
			Tradier: TradierConfig{APIKey: "t-key"},
			Finnhub: FinnhubConfig{APIKey: "f-key"},
		},
	}
	cfg.Normalize()
	return cfg
}

func TestLoad(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	const yamlBody = `
environment: { mode: "dry_run", log_level: "info" }
universe: { tickers: ["AAPL"], date_window_days: 5, concurrency: 10 }
providers:
  tradier: { api_key: "t-key" }
  finnhub: { api_key: "f-key" }
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}
	if cfg.Scoring.Profile != "aggressive" {
		t.Errorf("expected scoring.profile to default to aggressive, got %q", cfg.Scoring.Profile)
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Error("expected error when loading a nonexistent config file")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	const badYAML = `
environment: { mode: "dry_run", log_level: "info" }
universe: { tickers: ["AAPL"], date_window_days: 5, concurrency: 10 }
providers:
  tradier: { api_key: "t-key" }
  finnhub: { api_key: "f-key" }
extra_unknown_key: true
`
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(badYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("VRPSCANNER_TEST_TRADIER_KEY", "expanded-key")
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	const yamlBody = `
environment: { mode: "dry_run", log_level: "info" }
universe: { tickers: ["AAPL"], date_window_days: 5, concurrency: 10 }
providers:
  tradier: { api_key: "${VRPSCANNER_TEST_TRADIER_KEY}" }
  finnhub: { api_key: "f-key" }
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Tradier.APIKey != "expanded-key" {
		t.Errorf("expected env var to be expanded, got %q", cfg.Providers.Tradier.APIKey)
	}
}

func TestValidate_RequiresProviderKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Providers.Tradier.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when tradier api key is missing")
	}
}

func TestValidate_EnvironmentMode(t *testing.T) {
	cfg := validConfig()
	cfg.Environment.Mode = "production"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an invalid environment.mode")
	}
}

func TestValidate_ScoringWeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.VRP = 0.9
	cfg.Scoring.Consistency = 0.3
	cfg.Scoring.Skew = 0.1
	cfg.Scoring.Liquidity = 0.2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when scoring weights do not sum to 1.0")
	}
}

func TestValidate_ScoringWeightsExactSum(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.VRP = 0.55
	cfg.Scoring.Consistency = 0.15
	cfg.Scoring.Skew = 0.10
	cfg.Scoring.Liquidity = 0.20
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_HistoricalMetric(t *testing.T) {
	cfg := validConfig()
	cfg.Universe.HistoricalMetric = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an invalid universe.historical_metric")
	}
}

func TestValidate_SchedulerZone(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.Zone = "Not/A_Zone"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an invalid scheduler.zone")
	}
}

func TestValidate_LiquidityFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.LiquidityFloor = "BOGUS"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an invalid strategy.liquidity_floor")
	}
}

func TestNormalize_DefaultsRateLimitsAndBreakers(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	for _, name := range []string{"tradier", "finnhub", "llm_sentiment"} {
		if cfg.RateLimits[name].Capacity == 0 {
			t.Errorf("expected rate_limits.%s to default to a nonzero capacity", name)
		}
		if cfg.Breakers[name].FailureThreshold == 0 {
			t.Errorf("expected breakers.%s to default to a nonzero failure threshold", name)
		}
	}
	if cfg.Scheduler.Zone != "America/New_York" {
		t.Errorf("expected scheduler.zone to default to America/New_York, got %q", cfg.Scheduler.Zone)
	}
}

func TestIsLiveMode(t *testing.T) {
	cfg := validConfig()
	if cfg.IsLiveMode() {
		t.Error("expected dry_run mode to report IsLiveMode() == false")
	}
	cfg.Environment.Mode = "live"
	if !cfg.IsLiveMode() {
		t.Error("expected live mode to report IsLiveMode() == true")
	}
}
