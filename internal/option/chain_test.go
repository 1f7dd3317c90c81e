package option

import (
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/money"
)

func quote(strike float64, typ Type, bid, ask float64) Quote {
	return Quote{
		Strike: money.NewStrike(strike),
		Type:   typ,
		Bid:    money.NewMoney(bid),
		Ask:    money.NewMoney(ask),
	}
}

func TestATMStrikeTieBrokenByLowestStrike(t *testing.T) {
	c := NewChain("XYZ", time.Now(), money.NewMoney(100.00))
	// 95 and 105 are equidistant from 100; 95 must win.
	c.AddQuote(quote(95, Call, 5.00, 5.20))
	c.AddQuote(quote(95, Put, 0.10, 0.20))
	c.AddQuote(quote(105, Call, 0.10, 0.20))
	c.AddQuote(quote(105, Put, 5.00, 5.20))
	c.AddQuote(quote(100, Call, 3.00, 3.20))
	c.AddQuote(quote(100, Put, 2.80, 3.00))

	// Remove the exact-ATM 100 strike to force a genuine tie between 95 and 105.
	delete(c.Calls, money.NewStrike(100).Key())
	delete(c.Puts, money.NewStrike(100).Key())

	atm, err := c.ATMStrike()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atm.Cmp(money.NewStrike(95)) != 0 {
		t.Fatalf("expected tie broken to lowest strike 95, got %s", atm.String())
	}
}

func TestATMStrikeNoLiquidPair(t *testing.T) {
	c := NewChain("XYZ", time.Now(), money.NewMoney(100.00))
	c.AddQuote(quote(100, Call, 0, 0))
	c.AddQuote(quote(100, Put, 0, 0))

	_, err := c.ATMStrike()
	if !apperr.Is(err, apperr.KindNoData) {
		t.Fatalf("expected NODATA, got %v", err)
	}
}

func TestSpreadPctZeroMid(t *testing.T) {
	q := quote(100, Call, 0, 0)
	if q.SpreadPct() != 1.0 {
		t.Fatalf("expected 1.0 for zero mid, got %v", q.SpreadPct())
	}
}

func TestMoneynessQuotesExcludesNearAndFarStrikes(t *testing.T) {
	c := NewChain("XYZ", time.Now(), money.NewMoney(100.00))
	c.AddQuote(quote(100, Call, 3.0, 3.2))
	c.AddQuote(quote(100, Put, 2.8, 3.0))
	c.AddQuote(quote(105, Call, 1.0, 1.2)) // moneyness 0.05, in band
	c.AddQuote(quote(105, Put, 1.0, 1.2))
	c.AddQuote(quote(130, Call, 0.1, 0.2)) // moneyness 0.30, out of band
	c.AddQuote(quote(130, Put, 0.1, 0.2))

	points := c.MoneynessQuotes(0.02, 0.15)
	if len(points) != 1 {
		t.Fatalf("expected 1 point in band, got %d", len(points))
	}
	if points[0].Strike.Cmp(money.NewStrike(105)) != 0 {
		t.Fatalf("expected strike 105, got %s", points[0].Strike.String())
	}
}
