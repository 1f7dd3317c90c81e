// Package util also carries the market-day calendar: a static NYSE
// holiday/weekend rule generalized from the teacher's broker.MarketCalendarResponse
// /IsTradingDay (internal/broker/tradier.go), which pulled the same answer
// from a live Tradier endpoint. Time-dependent scheduling (§6 is_trading_day,
// get_last_trading_day) shouldn't depend on a network round trip just to
// learn "today is a Saturday," so this is computed locally instead.
package util

import "time"

// NYSELocation is the canonical market zone every scheduling rule is
// parameterized on (§5: "naive times are forbidden at core boundaries").
func NYSELocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// IsTradingDay reports whether t's calendar date (in the NYSE zone) is a
// regular NYSE trading session: not a weekend, not a recognized holiday.
func IsTradingDay(t time.Time) bool {
	t = t.In(NYSELocation())
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !isHoliday(t)
}

// GetLastTradingDay returns the most recent trading day on or before t.
func GetLastTradingDay(t time.Time) time.Time {
	d := truncateToDay(t.In(NYSELocation()))
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the next trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := truncateToDay(t.In(NYSELocation())).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isHoliday(t time.Time) bool {
	for _, h := range holidays(t.Year()) {
		if sameDate(t, h) {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// holidays computes the NYSE full-closure holidays for a given year. Fixed
// holidays falling on a weekend observe the adjacent weekday per NYSE
// convention (Saturday -> preceding Friday, Sunday -> following Monday).
func holidays(year int) []time.Time {
	loc := NYSELocation()
	var out []time.Time

	add := func(m time.Month, d int) {
		out = append(out, observed(time.Date(year, m, d, 0, 0, 0, 0, loc)))
	}

	add(time.January, 1)                                  // New Year's Day
	out = append(out, nthWeekday(year, time.January, time.Monday, 3))   // MLK Day
	out = append(out, nthWeekday(year, time.February, time.Monday, 3))  // Washington's Birthday
	out = append(out, goodFriday(year))
	out = append(out, lastWeekday(year, time.May, time.Monday)) // Memorial Day
	add(time.June, 19)                                     // Juneteenth
	add(time.July, 4)                                       // Independence Day
	out = append(out, nthWeekday(year, time.September, time.Monday, 1)) // Labor Day
	out = append(out, nthWeekday(year, time.November, time.Thursday, 4)) // Thanksgiving
	add(time.December, 25)                                 // Christmas

	return out
}

// observed shifts a fixed-date holiday off a weekend per NYSE convention.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// nthWeekday returns the nth occurrence (1-indexed) of weekday in month/year.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	loc := NYSELocation()
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset+7*(n-1))
	return d
}

// lastWeekday returns the last occurrence of weekday in month/year.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	loc := NYSELocation()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	d := firstOfNext.AddDate(0, 0, -1)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday computes the Friday before Easter Sunday via the anonymous
// Gregorian algorithm (Meeus/Jones/Butcher), then steps back two days.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	loc := NYSELocation()
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	return easter.AddDate(0, 0, -2)
}
