package money

import "testing"

func TestPercentageRange(t *testing.T) {
	cases := []struct {
		x     float64
		valid bool
	}{
		{-100, true},
		{1000, true},
		{0, true},
		{-100.01, false},
		{1000.01, false},
		{6.0, true},
	}
	for _, c := range cases {
		_, err := NewPercentage(c.x)
		if c.valid && err != nil {
			t.Errorf("NewPercentage(%v) expected valid, got error %v", c.x, err)
		}
		if !c.valid && err == nil {
			t.Errorf("NewPercentage(%v) expected error, got none", c.x)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(3.10)
	b := NewMoney(2.90)
	straddle := a.Add(b)
	if straddle.String() != "$6.00" {
		t.Fatalf("expected $6.00, got %s", straddle.String())
	}

	spot := NewMoney(100.00)
	upper := spot.Add(straddle)
	lower := spot.Sub(straddle)
	if upper.String() != "$106.00" || lower.String() != "$94.00" {
		t.Fatalf("unexpected bounds: upper=%s lower=%s", upper.String(), lower.String())
	}
}

func TestStrikeOrdering(t *testing.T) {
	low := NewStrike(95)
	high := NewStrike(105)
	if low.Cmp(high) >= 0 {
		t.Fatalf("expected low < high")
	}
	if low.Key() == high.Key() {
		t.Fatalf("expected distinct keys")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(1.5, -1, 1) != 1 {
		t.Fatalf("expected clamp to 1")
	}
	if Clamp(-1.5, -1, 1) != -1 {
		t.Fatalf("expected clamp to -1")
	}
	if Clamp(0.8, -1, 1) != 0.8 {
		t.Fatalf("expected passthrough")
	}
}
