package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveScanSetsGauges(t *testing.T) {
	m := New()
	m.ObserveScan(2*time.Second, 5, 1)

	if got := testutil.ToFloat64(m.ScanOpportunities); got != 5 {
		t.Fatalf("expected 5 opportunities, got %v", got)
	}
	if got := testutil.ToFloat64(m.ScanFailures); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestObserveCacheDeltaOnlyAddsPositiveDeltas(t *testing.T) {
	m := New()
	m.ObserveCacheDelta("chain", 3, 0)
	m.ObserveCacheDelta("chain", 0, 2)

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("chain")); got != 3 {
		t.Fatalf("expected 3 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("chain")); got != 2 {
		t.Fatalf("expected 2 cache misses, got %v", got)
	}
}

func TestBreakerStateValue(t *testing.T) {
	cases := map[string]float64{"closed": 0, "half-open": 1, "open": 2, "": 0}
	for state, want := range cases {
		if got := BreakerStateValue(state); got != want {
			t.Fatalf("state %q: expected %v, got %v", state, want, got)
		}
	}
}

func TestObserveBreakerSetsLabeledGauge(t *testing.T) {
	m := New()
	m.ObserveBreaker("tradier", "open")
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("tradier")); got != 2 {
		t.Fatalf("expected breaker gauge 2, got %v", got)
	}
}

func TestObserveBudgetSetsLabeledGauges(t *testing.T) {
	m := New()
	m.ObserveBudget("llm_sentiment", 42, 7.5)
	if got := testutil.ToFloat64(m.BudgetCallsRemaining.WithLabelValues("llm_sentiment")); got != 42 {
		t.Fatalf("expected 42 calls remaining, got %v", got)
	}
	if got := testutil.ToFloat64(m.BudgetCostRemaining.WithLabelValues("llm_sentiment")); got != 7.5 {
		t.Fatalf("expected 7.5 cost remaining, got %v", got)
	}
}
