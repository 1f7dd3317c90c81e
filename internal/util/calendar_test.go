package util

import (
	"testing"
	"time"
)

func TestIsTradingDayRejectsWeekend(t *testing.T) {
	loc := NYSELocation()
	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, loc)
	if IsTradingDay(saturday) {
		t.Fatalf("expected Saturday to not be a trading day")
	}
}

func TestIsTradingDayRejectsFixedHoliday(t *testing.T) {
	loc := NYSELocation()
	christmas := time.Date(2026, 12, 25, 12, 0, 0, 0, loc)
	if IsTradingDay(christmas) {
		t.Fatalf("expected Christmas to not be a trading day")
	}
}

func TestIsTradingDayAcceptsOrdinaryWeekday(t *testing.T) {
	loc := NYSELocation()
	thursday := time.Date(2026, 7, 30, 12, 0, 0, 0, loc)
	if !IsTradingDay(thursday) {
		t.Fatalf("expected an ordinary Thursday to be a trading day")
	}
}

func TestGetLastTradingDaySkipsWeekend(t *testing.T) {
	loc := NYSELocation()
	sunday := time.Date(2026, 8, 2, 9, 0, 0, 0, loc)
	last := GetLastTradingDay(sunday)
	if last.Weekday() != time.Friday {
		t.Fatalf("expected the last trading day before a Sunday to be Friday, got %s", last.Weekday())
	}
}

func TestGoodFridayIsObservedAsHoliday(t *testing.T) {
	// Easter Sunday 2026 is April 5, so Good Friday is April 3.
	loc := NYSELocation()
	gf := time.Date(2026, 4, 3, 12, 0, 0, 0, loc)
	if IsTradingDay(gf) {
		t.Fatalf("expected Good Friday 2026-04-03 to be a holiday")
	}
}

func TestJulyFourthObservedOnAdjacentWeekdayWhenWeekend(t *testing.T) {
	// July 4, 2026 falls on a Saturday; NYSE observes it on Friday July 3.
	loc := NYSELocation()
	observedDay := time.Date(2026, 7, 3, 12, 0, 0, 0, loc)
	if IsTradingDay(observedDay) {
		t.Fatalf("expected the Friday before a Saturday July 4th to be the observed holiday")
	}
}
