// Package budget enforces per-service daily call counts and monthly dollar
// accrual against a fixed pricing table, failing closed when its
// persistent counters cannot be read — the same fail-closed posture the
// teacher's strategy package applies to IV errors, generalized here to
// budget exhaustion.
package budget

import (
	"sync"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
)

// Status is the outcome of a pre-call budget check.
type Status string

const (
	StatusOK        Status = "OK"
	StatusWarning   Status = "WARNING"
	StatusExhausted Status = "EXHAUSTED"
)

// WarningThreshold and ExhaustedThreshold are fractions of a cap.
const (
	WarningThreshold   = 0.80
	ExhaustedThreshold = 1.00
)

// TokenClass distinguishes pricing tiers within one model (e.g. output vs
// reasoning tokens).
type TokenClass string

const (
	ClassOutput        TokenClass = "output"
	ClassReasoning     TokenClass = "reasoning"
	ClassSearchRequest TokenClass = "search_request"
)

// PriceKey indexes the fixed pricing table.
type PriceKey struct {
	Service string
	Model   string
	Class   TokenClass
}

// PriceTable maps (service, model, token-class) to a per-unit cost.
type PriceTable map[PriceKey]money.Money

// Limits are the per-service caps the tracker enforces.
type Limits struct {
	DailyCalls    int64
	MonthlyBudget money.Money
}

// Store persists counters across process restarts. A real implementation
// backs onto the relational store (C17); Store failures are treated as
// EXHAUSTED per the fail-closed requirement.
type Store interface {
	LoadDailyCalls(service string, day time.Time) (int64, error)
	IncrDailyCalls(service string, day time.Time, delta int64) error
	LoadMonthlyCost(service string, month time.Time) (money.Money, error)
	AddMonthlyCost(service string, month time.Time, delta money.Money) error
}

// Summary is the read-only view returned by Summary().
type Summary struct {
	TodayCalls    int64
	DailyLimit    int64
	MonthCost     money.Money
	MonthlyBudget money.Money
	CanCall       bool
}

// Tracker enforces Limits per service against a Store, atomically.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	prices PriceTable
	limits map[string]Limits
	now    func() time.Time
}

// New constructs a Tracker. limits maps service name to its caps.
func New(store Store, prices PriceTable, limits map[string]Limits) *Tracker {
	return &Tracker{store: store, prices: prices, limits: limits, now: time.Now}
}

func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func monthKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Check evaluates whether a call estimated to cost estimatedCost may
// proceed. Fails closed (EXHAUSTED) if counters cannot be read.
func (t *Tracker) Check(service string, estimatedCost money.Money) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	limits, ok := t.limits[service]
	if !ok {
		return "", apperr.New(apperr.KindConfiguration, "budget.Tracker.Check", "no limits configured for service "+service)
	}

	now := t.now()
	calls, err := t.store.LoadDailyCalls(service, dayKey(now))
	if err != nil {
		return StatusExhausted, apperr.Wrap(apperr.KindDBError, "budget.Tracker.Check", "failed to read daily call count; failing closed", err)
	}
	cost, err := t.store.LoadMonthlyCost(service, monthKey(now))
	if err != nil {
		return StatusExhausted, apperr.Wrap(apperr.KindDBError, "budget.Tracker.Check", "failed to read monthly cost; failing closed", err)
	}

	projectedCost := cost.Add(estimatedCost)
	projectedCalls := calls + 1

	callFrac := fraction(float64(projectedCalls), float64(limits.DailyCalls))
	costFrac := fraction(projectedCost.Float64(), limits.MonthlyBudget.Float64())

	switch {
	case callFrac >= ExhaustedThreshold || costFrac >= ExhaustedThreshold:
		return StatusExhausted, nil
	case callFrac >= WarningThreshold || costFrac >= WarningThreshold:
		return StatusWarning, nil
	default:
		return StatusOK, nil
	}
}

func fraction(value, limit float64) float64 {
	if limit <= 0 {
		return 1.0
	}
	return value / limit
}

// Record validates and persists usage for one completed call. Each count
// must be a non-negative integer no greater than 10,000,000.
func (t *Tracker) Record(service, model string, outputTokens, reasoningTokens, searchRequests int64) error {
	const maxCount = 10_000_000
	for _, v := range []int64{outputTokens, reasoningTokens, searchRequests} {
		if v < 0 || v > maxCount {
			return apperr.New(apperr.KindInvalid, "budget.Tracker.Record", "token/request count out of range [0, 10000000]")
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cost := t.prices[PriceKey{Service: service, Model: model, Class: ClassOutput}].MulScalar(float64(outputTokens))
	cost = cost.Add(t.prices[PriceKey{Service: service, Model: model, Class: ClassReasoning}].MulScalar(float64(reasoningTokens)))
	cost = cost.Add(t.prices[PriceKey{Service: service, Model: model, Class: ClassSearchRequest}].MulScalar(float64(searchRequests)))

	if err := t.store.IncrDailyCalls(service, dayKey(now), 1); err != nil {
		return apperr.Wrap(apperr.KindDBError, "budget.Tracker.Record", "failed to persist daily call count", err)
	}
	if err := t.store.AddMonthlyCost(service, monthKey(now), cost); err != nil {
		return apperr.Wrap(apperr.KindDBError, "budget.Tracker.Record", "failed to persist monthly cost", err)
	}
	return nil
}

// Summary reports the current counters and whether the service can still be called.
func (t *Tracker) Summary(service string) (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	limits, ok := t.limits[service]
	if !ok {
		return Summary{}, apperr.New(apperr.KindConfiguration, "budget.Tracker.Summary", "no limits configured for service "+service)
	}

	now := t.now()
	calls, err := t.store.LoadDailyCalls(service, dayKey(now))
	if err != nil {
		return Summary{CanCall: false}, apperr.Wrap(apperr.KindDBError, "budget.Tracker.Summary", "failed to read daily call count; failing closed", err)
	}
	cost, err := t.store.LoadMonthlyCost(service, monthKey(now))
	if err != nil {
		return Summary{CanCall: false}, apperr.Wrap(apperr.KindDBError, "budget.Tracker.Summary", "failed to read monthly cost; failing closed", err)
	}

	callFrac := fraction(float64(calls), float64(limits.DailyCalls))
	costFrac := fraction(cost.Float64(), limits.MonthlyBudget.Float64())
	exhausted := callFrac >= ExhaustedThreshold || costFrac >= ExhaustedThreshold

	return Summary{
		TodayCalls:    calls,
		DailyLimit:    limits.DailyCalls,
		MonthCost:     cost,
		MonthlyBudget: limits.MonthlyBudget,
		CanCall:       !exhausted,
	}, nil
}
