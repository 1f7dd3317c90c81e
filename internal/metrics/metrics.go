// Package metrics exposes the scanner's runtime counters and gauges
// through prometheus/client_golang (§4.22, C24): cache hit rate, budget
// spend, scan latency, and per-provider circuit-breaker state. It plays
// the same "one registry, constructed once at startup, injected
// everywhere" role the teacher gives its dashboard.Server, generalized
// from HTML position rendering to Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the scanner registers. Constructed once
// at startup and held by the App, which updates it after each scan.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	BudgetCallsRemaining *prometheus.GaugeVec
	BudgetCostRemaining  *prometheus.GaugeVec

	ScanDuration      prometheus.Histogram
	ScanOpportunities prometheus.Gauge
	ScanFailures      prometheus.Gauge

	BreakerState *prometheus.GaugeVec
}

// New constructs a Metrics bundle and registers every collector against a
// fresh, isolated registry (never the global default, mirroring the
// teacher's preference for explicitly-constructed, injected collaborators
// over hidden package globals).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrpscanner_cache_hits_total",
			Help: "Cache hits, labeled by cache instance name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrpscanner_cache_misses_total",
			Help: "Cache misses, labeled by cache instance name.",
		}, []string{"cache"}),
		BudgetCallsRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vrpscanner_budget_calls_remaining",
			Help: "Daily call budget remaining, labeled by service.",
		}, []string{"service"}),
		BudgetCostRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vrpscanner_budget_cost_remaining_usd",
			Help: "Monthly dollar budget remaining, labeled by service.",
		}, []string{"service"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vrpscanner_scan_duration_seconds",
			Help:    "Wall-clock duration of a full scan.",
			Buckets: prometheus.DefBuckets,
		}),
		ScanOpportunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vrpscanner_scan_opportunities",
			Help: "Opportunities produced by the most recent scan.",
		}),
		ScanFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vrpscanner_scan_failures",
			Help: "Per-ticker failures recorded by the most recent scan.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vrpscanner_breaker_state",
			Help: "Circuit breaker state per provider: 0=closed, 1=half_open, 2=open.",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.CacheHits, m.CacheMisses,
		m.BudgetCallsRemaining, m.BudgetCostRemaining,
		m.ScanDuration, m.ScanOpportunities, m.ScanFailures,
		m.BreakerState,
	)
	return m
}

// ObserveScan records one completed scan's duration and aggregate counts.
func (m *Metrics) ObserveScan(d time.Duration, opportunities, failures int) {
	m.ScanDuration.Observe(d.Seconds())
	m.ScanOpportunities.Set(float64(opportunities))
	m.ScanFailures.Set(float64(failures))
}

// ObserveCacheDelta adds hits/misses observed since the last call, labeled
// by cache instance name. Callers diff cache.Stats snapshots themselves.
func (m *Metrics) ObserveCacheDelta(name string, hits, misses int64) {
	if hits > 0 {
		m.CacheHits.WithLabelValues(name).Add(float64(hits))
	}
	if misses > 0 {
		m.CacheMisses.WithLabelValues(name).Add(float64(misses))
	}
}

// ObserveBudget records one service's remaining daily calls and monthly cost.
func (m *Metrics) ObserveBudget(service string, callsRemaining float64, costRemaining float64) {
	m.BudgetCallsRemaining.WithLabelValues(service).Set(callsRemaining)
	m.BudgetCostRemaining.WithLabelValues(service).Set(costRemaining)
}

// BreakerStateValue maps a gobreaker state name to the numeric gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// ObserveBreaker records one provider's current circuit-breaker state.
func (m *Metrics) ObserveBreaker(provider, state string) {
	m.BreakerState.WithLabelValues(provider).Set(BreakerStateValue(state))
}
