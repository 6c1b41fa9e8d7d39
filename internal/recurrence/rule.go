// Package recurrence converts between structured recurrence rules and their
// stored RRULE-like text form, and renders rules as English sentences.
//
// Only the subset of RFC 5545 the calendar uses is modelled: frequency,
// interval, weekday list, until-date and count.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// MaxStoredLength is the size of the recurrence column in the events table.
const MaxStoredLength = 500

// Frequency is the recurrence unit.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Valid reports whether f is one of the four supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// unit is the singular English noun used in descriptions.
func (f Frequency) unit() string {
	switch f {
	case Daily:
		return "day"
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	case Yearly:
		return "year"
	}
	return ""
}

// Rule is a structured recurrence rule.
//
// A zero EndDate and a zero Count mean "not set". WeekDays is only meaningful
// for weekly rules and keeps the order the user picked; repeats are dropped
// when the rule is encoded, decoded or described.
type Rule struct {
	Frequency Frequency      `json:"frequency"`
	Interval  int            `json:"interval"`
	WeekDays  []time.Weekday `json:"week_days"`
	EndDate   Date           `json:"end_date,omitzero"`
	Count     int            `json:"count,omitempty"`
}

// New returns a rule with the given frequency and the documented defaults.
func New(f Frequency) Rule {
	return Rule{
		Frequency: f,
		Interval:  1,
		WeekDays:  []time.Weekday{},
	}
}

// WithInterval returns a copy of r using interval n.
func (r Rule) WithInterval(n int) Rule {
	out := r.clone()
	out.Interval = n
	return out
}

// WithWeekDays returns a copy of r using the given weekdays.
func (r Rule) WithWeekDays(days ...time.Weekday) Rule {
	out := r.clone()
	out.WeekDays = append([]time.Weekday{}, days...)
	return out
}

// WithEndDate returns a copy of r ending on d (inclusive).
func (r Rule) WithEndDate(d Date) Rule {
	out := r.clone()
	out.EndDate = d
	return out
}

// WithCount returns a copy of r limited to n occurrences.
func (r Rule) WithCount(n int) Rule {
	out := r.clone()
	out.Count = n
	return out
}

func (r Rule) clone() Rule {
	out := r
	out.WeekDays = append([]time.Weekday{}, r.WeekDays...)
	return out
}

// Validate checks r structurally. Encode tolerates most of these problems by
// dropping the offending parts; Validate is for callers that want to reject
// user input instead.
func (r Rule) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("recurrence: unknown frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("recurrence: interval must be >= 1, got %d", r.Interval)
	}
	for _, d := range r.WeekDays {
		if !validWeekday(d) {
			return fmt.Errorf("recurrence: weekday %d out of range", d)
		}
	}
	if !r.EndDate.IsZero() && !r.EndDate.Valid() {
		return fmt.Errorf("recurrence: invalid end date %s", r.EndDate)
	}
	if r.Count < 0 {
		return errors.New("recurrence: count must not be negative")
	}
	return nil
}

// Equal reports whether r and o describe the same rule.
func (r Rule) Equal(o Rule) bool {
	if r.Frequency != o.Frequency || r.Interval != o.Interval || r.Count != o.Count || r.EndDate != o.EndDate {
		return false
	}
	if len(r.WeekDays) != len(o.WeekDays) {
		return false
	}
	for i := range r.WeekDays {
		if r.WeekDays[i] != o.WeekDays[i] {
			return false
		}
	}
	return true
}

// weekdayCodes maps time.Weekday (Sunday = 0) to its two-letter BYDAY code.
var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// codeWeekdays is the reverse of weekdayCodes.
var codeWeekdays = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

func validWeekday(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday
}

// uniqueWeekdays returns the valid entries of days in order, first
// occurrence wins.
func uniqueWeekdays(days []time.Weekday) []time.Weekday {
	var seen [7]bool
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !validWeekday(d) || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// WeekdayCode returns the BYDAY code for d, or "" when d is out of range.
func WeekdayCode(d time.Weekday) string {
	if !validWeekday(d) {
		return ""
	}
	return weekdayCodes[d]
}

// ParseWeekdayCode is the inverse of WeekdayCode.
func ParseWeekdayCode(code string) (time.Weekday, bool) {
	d, ok := codeWeekdays[code]
	return d, ok
}
