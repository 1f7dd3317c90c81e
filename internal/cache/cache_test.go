package cache

import (
	"testing"
	"time"
)

func TestGetMissThenHit(t *testing.T) {
	c := New(time.Minute, 10)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("expected hit with value 1, got %v ok=%v", v, ok)
	}
	stats := c.StatsSnapshot()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Millisecond, 10)
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }
	c.Set("a", 1)

	fakeNow = fakeNow.Add(2 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(time.Hour, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // promote a to MRU, b becomes LRU
	c.Set("c", 3) // should evict b

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c retained")
	}
}

type clonableSlice struct {
	xs []int
}

func (c clonableSlice) Clone() any {
	return clonableSlice{xs: append([]int(nil), c.xs...)}
}

func TestGetReturnsDefensiveCopyForCloner(t *testing.T) {
	c := New(time.Hour, 10)
	c.Set("a", clonableSlice{xs: []int{1, 2, 3}})

	first, ok := c.Get("a")
	if !ok {
		t.Fatalf("expected hit")
	}
	first.(clonableSlice).xs[0] = 999 // mutate the caller's copy

	second, ok := c.Get("a")
	if !ok {
		t.Fatalf("expected hit")
	}
	if second.(clonableSlice).xs[0] != 1 {
		t.Fatalf("expected cached entry unaffected by caller mutation, got %v", second.(clonableSlice).xs)
	}
}

func TestHitRate(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	if s.HitRate() != 0.75 {
		t.Fatalf("expected 0.75, got %v", s.HitRate())
	}
	if (Stats{}).HitRate() != 0 {
		t.Fatalf("expected 0 for empty stats")
	}
}
