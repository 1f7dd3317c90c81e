package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/money"
)

type memStore struct {
	mu    sync.Mutex
	calls map[string]int64
	cost  map[string]money.Money
}

func newMemStore() *memStore {
	return &memStore{calls: make(map[string]int64), cost: make(map[string]money.Money)}
}

func (m *memStore) LoadDailyCalls(service string, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[service+day.String()], nil
}

func (m *memStore) IncrDailyCalls(service string, day time.Time, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[service+day.String()] += delta
	return nil
}

func (m *memStore) LoadMonthlyCost(service string, month time.Time) (money.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost[service+month.String()], nil
}

func (m *memStore) AddMonthlyCost(service string, month time.Time, delta money.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost[service+month.String()] = m.cost[service+month.String()].Add(delta)
	return nil
}

func TestCheckOKThenWarningThenExhausted(t *testing.T) {
	store := newMemStore()
	limits := map[string]Limits{"sentiment-llm": {DailyCalls: 10, MonthlyBudget: money.NewMoney(100)}}
	tr := New(store, PriceTable{}, limits)

	status, err := tr.Check("sentiment-llm", money.NewMoney(1))
	if err != nil || status != StatusOK {
		t.Fatalf("expected OK, got %v err=%v", status, err)
	}

	// Push daily calls to 70%; the projected next call reaches the 80% threshold.
	for i := 0; i < 7; i++ {
		_ = tr.Record("sentiment-llm", "gpt", 0, 0, 0)
	}
	status, err = tr.Check("sentiment-llm", money.NewMoney(0))
	if err != nil || status != StatusWarning {
		t.Fatalf("expected WARNING at 80%%+, got %v err=%v", status, err)
	}

	for i := 0; i < 3; i++ {
		_ = tr.Record("sentiment-llm", "gpt", 0, 0, 0)
	}
	status, err = tr.Check("sentiment-llm", money.NewMoney(0))
	if err != nil || status != StatusExhausted {
		t.Fatalf("expected EXHAUSTED at cap, got %v err=%v", status, err)
	}
}

func TestRecordRejectsOutOfRangeCounts(t *testing.T) {
	store := newMemStore()
	limits := map[string]Limits{"svc": {DailyCalls: 100, MonthlyBudget: money.NewMoney(10)}}
	tr := New(store, PriceTable{}, limits)

	if err := tr.Record("svc", "model", -1, 0, 0); err == nil {
		t.Fatalf("expected error for negative count")
	}
	if err := tr.Record("svc", "model", 10_000_001, 0, 0); err == nil {
		t.Fatalf("expected error for count over 10M")
	}
}

func TestSummaryCanCall(t *testing.T) {
	store := newMemStore()
	limits := map[string]Limits{"svc": {DailyCalls: 5, MonthlyBudget: money.NewMoney(10)}}
	tr := New(store, PriceTable{}, limits)

	summary, err := tr.Summary("svc")
	if err != nil || !summary.CanCall {
		t.Fatalf("expected CanCall true initially, got %+v err=%v", summary, err)
	}
}
