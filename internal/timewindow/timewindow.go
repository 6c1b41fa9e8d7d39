// Package timewindow derives concrete start/end timestamps from the
// separately edited date, time-of-day and duration fields of an event form,
// and decides whether a start/end pair is an all-day event.
//
// Nothing here fails: malformed input falls back to midnight or to a zero
// offset, since the values feed form state rather than stored data.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationToken names one of the fixed event lengths offered by the form.
type DurationToken string

const (
	Duration30m   DurationToken = "duration_30m"
	Duration1h    DurationToken = "duration_1h"
	Duration1h30m DurationToken = "duration_1h30m"
	Duration2h    DurationToken = "duration_2h"
	Duration3h    DurationToken = "duration_3h"
)

const durationPrefix = "duration_"

// Minutes returns the length of the token, or 0 for unknown tokens.
func (t DurationToken) Minutes() int {
	switch t {
	case Duration30m:
		return 30
	case Duration1h:
		return 60
	case Duration1h30m:
		return 90
	case Duration2h:
		return 120
	case Duration3h:
		return 180
	}
	return 0
}

// IsDurationToken reports whether s selects a duration rather than an
// explicit end time. Unknown "duration_*" values count as durations.
func IsDurationToken(s string) bool {
	return strings.HasPrefix(s, durationPrefix)
}

// ParseTimeOfDay parses "HH:mm". Anything else yields (0, 0).
func ParseTimeOfDay(text string) (hour, minute int) {
	h, m, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return 0, 0
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, 0
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0
	}
	return hh, mm
}

// FormatTimeOfDay is the inverse of ParseTimeOfDay.
func FormatTimeOfDay(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// CombineDateAndTime keeps the calendar date of date (in its own location)
// and sets the time of day from timeOfDay, with zero seconds.
func CombineDateAndTime(date time.Time, timeOfDay string) time.Time {
	h, m := ParseTimeOfDay(timeOfDay)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location())
}

// ResolveEndTimestamp computes the end of an event. endSelector is either a
// duration token, added to the start, or an explicit "HH:mm" end time on the
// start date. Unknown duration tokens leave the end equal to the start.
func ResolveEndTimestamp(startDate time.Time, startTimeOfDay, endSelector string) time.Time {
	if !IsDurationToken(endSelector) {
		return CombineDateAndTime(startDate, endSelector)
	}
	base := CombineDateAndTime(startDate, startTimeOfDay)
	total := DurationToken(endSelector).Minutes()
	return base.Add(time.Duration(total/60) * time.Hour).Add(time.Duration(total%60) * time.Minute)
}

// Window is a resolved start/end pair.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

// Compose resolves the form fields into a Window, classifying it with rule.
func Compose(date time.Time, startTimeOfDay, endSelector string, rule AllDayRule) Window {
	start := CombineDateAndTime(date, startTimeOfDay)
	end := ResolveEndTimestamp(date, startTimeOfDay, endSelector)
	return Window{
		Start:  start,
		End:    end,
		AllDay: rule.Matches(start, end),
	}
}
