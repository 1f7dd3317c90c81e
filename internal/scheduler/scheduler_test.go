package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/budget"
	"github.com/eddiefleurent/vrpscanner/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]*models.JobStatus
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]*models.JobStatus)}
}

func (m *memStore) key(date time.Time, job JobName) string {
	return date.Format("2006-01-02") + "|" + string(job)
}

func (m *memStore) Load(_ context.Context, date time.Time, job JobName) (*models.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[m.key(date, job)], nil
}

func (m *memStore) Save(_ context.Context, js *models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(js.Date, JobName(js.JobName))] = js
	return nil
}

func nyFixed(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestDispatchRunsJobInItsSlot(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 5, 45, 0, 0, loc) // Thursday, in pre-market-prep window
	store := newMemStore()
	ran := false
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobPreMarketPrep: func(ctx context.Context) error { ran = true; return nil },
	}, store)
	s.Now = func() time.Time { return now }

	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || result.Job != JobPreMarketPrep {
		t.Fatalf("expected success/pre-market-prep, got %+v", result)
	}
	if !ran {
		t.Fatalf("expected runner to be invoked")
	}
}

func TestDispatchSkipsOnUnmetDependency(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 6, 10, 0, 0, loc) // sentiment-scan window, no pre-market-prep run yet
	store := newMemStore()
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobSentimentScan: func(ctx context.Context) error { return nil },
	}, store)
	s.Now = func() time.Time { return now }

	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "skipped" {
		t.Fatalf("expected skipped, got %+v", result)
	}
}

func TestDispatchIdempotentWithinSlot(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 5, 45, 0, 0, loc)
	store := newMemStore()
	calls := 0
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobPreMarketPrep: func(ctx context.Context) error { calls++; return nil },
	}, store)
	s.Now = func() time.Time { return now }

	if _, err := s.Dispatch(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "already_ran" {
		t.Fatalf("expected already_ran on second dispatch, got %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected runner invoked exactly once, got %d", calls)
	}
}

func TestDispatchNoJobOutsideAnyWindow(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 2, 0, 0, 0, loc)
	store := newMemStore()
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{}, store)
	s.Now = func() time.Time { return now }

	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "no_job" {
		t.Fatalf("expected no_job, got %+v", result)
	}
}

func TestDispatchForceBypassesTimeAndDependencyButNotBudget(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 2, 0, 0, 0, loc) // outside any window
	store := newMemStore()
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobSentimentScan: func(ctx context.Context) error { return nil },
	}, store)
	s.Now = func() time.Time { return now }
	s.BudgetCheck = func() (budget.Status, error) { return budget.StatusExhausted, nil }

	result, err := s.Dispatch(context.Background(), string(JobSentimentScan))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "skipped" || result.Reason != "budget exhausted" {
		t.Fatalf("expected budget-exhausted skip even when forced, got %+v", result)
	}
}

func TestDispatchRecordsFailure(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 7, 30, 5, 45, 0, 0, loc)
	store := newMemStore()
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobPreMarketPrep: func(ctx context.Context) error { return errors.New("provider down") },
	}, store)
	s.Now = func() time.Time { return now }

	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "failed" {
		t.Fatalf("expected failed, got %+v", result)
	}
	js, _ := store.Load(context.Background(), truncateToDay(now), JobPreMarketPrep)
	if js == nil || js.Status() != models.StatusFailed || js.Error != "provider down" {
		t.Fatalf("expected persisted failed status with error message, got %+v", js)
	}
}

func TestDispatchWeeklyBackfillMatchesCronSlot(t *testing.T) {
	loc := nyFixed(t)
	now := time.Date(2026, 8, 2, 3, 0, 0, 0, loc) // a Sunday at 03:00
	store := newMemStore()
	ran := false
	s := New(loc, DefaultTable(), DefaultDependencies(), map[JobName]Runner{
		JobWeeklyBackfill: func(ctx context.Context) error { ran = true; return nil },
	}, store)
	s.Now = func() time.Time { return now }

	result, err := s.Dispatch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || result.Job != JobWeeklyBackfill || !ran {
		t.Fatalf("expected weekly-backfill to run, got %+v", result)
	}
}
