package timewindow

import (
	"fmt"
	"time"
)

// AllDayRule selects how a start/end pair is classified as all day.
// Every caller must use the same configured rule.
type AllDayRule string

const (
	// AllDayMidnight: same calendar day, start and end both at hour 0.
	AllDayMidnight AllDayRule = "midnight"
	// AllDayEndOfDay: same calendar day, start at hour 0 and end at hour 23.
	AllDayEndOfDay AllDayRule = "end_of_day"
)

// DefaultAllDayRule is used when nothing is configured.
const DefaultAllDayRule = AllDayMidnight

// ParseAllDayRule validates a configured rule name. "" means the default.
func ParseAllDayRule(s string) (AllDayRule, error) {
	switch AllDayRule(s) {
	case "":
		return DefaultAllDayRule, nil
	case AllDayMidnight, AllDayEndOfDay:
		return AllDayRule(s), nil
	}
	return "", fmt.Errorf("timewindow: unknown all-day rule %q", s)
}

// Matches reports whether start and end form an all-day event under r.
// Unknown rules behave like the default.
func (r AllDayRule) Matches(start, end time.Time) bool {
	if !sameDay(start, end) || start.Hour() != 0 {
		return false
	}
	if r == AllDayEndOfDay {
		return end.Hour() == 23
	}
	return end.Hour() == 0
}

// IsAllDay classifies start and end with DefaultAllDayRule.
func IsAllDay(start, end time.Time) bool {
	return DefaultAllDayRule.Matches(start, end)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Bounds returns the start and end an all-day event on day gets under r,
// so that r.Matches(Bounds(day)) holds.
func (r AllDayRule) Bounds(day time.Time) (start, end time.Time) {
	y, m, d := day.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	if r == AllDayEndOfDay {
		return start, time.Date(y, m, d, 23, 59, 0, 0, day.Location())
	}
	return start, start
}
