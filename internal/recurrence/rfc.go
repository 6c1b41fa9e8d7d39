package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// rrule-go numbers weekdays from Monday; these tables translate to and from
// time.Weekday.
var (
	toRRuleWeekday = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
	fromRRuleDay   = [7]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
)

func (f Frequency) rrule() (rrule.Frequency, bool) {
	switch f {
	case Daily:
		return rrule.DAILY, true
	case Weekly:
		return rrule.WEEKLY, true
	case Monthly:
		return rrule.MONTHLY, true
	case Yearly:
		return rrule.YEARLY, true
	}
	return 0, false
}

// ROption converts r into rrule-go options. UNTIL becomes the last second of
// the end date in loc so that an event on that day is still included. RFC 5545
// forbids UNTIL together with COUNT, so Count is left out when an end date is
// set.
func (r Rule) ROption(loc *time.Location) (rrule.ROption, error) {
	if err := r.Validate(); err != nil {
		return rrule.ROption{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	freq, _ := r.Frequency.rrule()
	opt := rrule.ROption{
		Freq:     freq,
		Interval: r.Interval,
		Count:    r.Count,
	}
	if r.Interval == 1 {
		opt.Interval = 0
	}
	for _, d := range uniqueWeekdays(r.WeekDays) {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday[d])
	}
	if !r.EndDate.IsZero() {
		opt.Until = r.EndDate.In(loc).AddDate(0, 0, 1).Add(-time.Second)
		opt.Count = 0
	}
	return opt, nil
}

// FromROption converts rrule-go options into a Rule. Parts the calendar
// cannot represent are reported and skipped; an unsupported frequency fails.
func FromROption(opt *rrule.ROption) (Rule, []Diagnostic, error) {
	var ignored []Diagnostic
	drop := func(token, reason string) {
		ignored = append(ignored, Diagnostic{Token: token, Reason: reason})
	}

	var rule Rule
	switch opt.Freq {
	case rrule.DAILY:
		rule = New(Daily)
	case rrule.WEEKLY:
		rule = New(Weekly)
	case rrule.MONTHLY:
		rule = New(Monthly)
	case rrule.YEARLY:
		rule = New(Yearly)
	default:
		return Rule{}, nil, fmt.Errorf("%w: unsupported frequency %s", ErrInvalidRule, opt.Freq)
	}

	if opt.Interval > 1 {
		rule.Interval = opt.Interval
	}
	if opt.Count > 0 {
		rule.Count = opt.Count
	}
	if !opt.Until.IsZero() {
		rule.EndDate = DateOf(opt.Until)
	}
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			drop("BYDAY="+wd.String(), "nth weekday is not supported")
			continue
		}
		rule.WeekDays = append(rule.WeekDays, fromRRuleDay[wd.Day()])
	}
	rule.WeekDays = uniqueWeekdays(rule.WeekDays)

	unsupported := map[string]bool{
		"BYSETPOS":   len(opt.Bysetpos) > 0,
		"BYMONTH":    len(opt.Bymonth) > 0,
		"BYMONTHDAY": len(opt.Bymonthday) > 0,
		"BYYEARDAY":  len(opt.Byyearday) > 0,
		"BYWEEKNO":   len(opt.Byweekno) > 0,
		"BYHOUR":     len(opt.Byhour) > 0,
		"BYMINUTE":   len(opt.Byminute) > 0,
		"BYSECOND":   len(opt.Bysecond) > 0,
		"BYEASTER":   len(opt.Byeaster) > 0,
	}
	for _, key := range []string{"BYSETPOS", "BYMONTH", "BYMONTHDAY", "BYYEARDAY", "BYWEEKNO", "BYHOUR", "BYMINUTE", "BYSECOND", "BYEASTER"} {
		if unsupported[key] {
			drop(key, "unsupported property")
		}
	}

	return rule, ignored, nil
}

// ParseRFC parses a full RFC 5545 RRULE value, such as those found in
// imported iCalendar feeds (UNTIL may carry a time, BYDAY may use 1MO).
// Dates are interpreted in loc.
func ParseRFC(value string, loc *time.Location) (Rule, []Diagnostic, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimPrefix(strings.TrimSpace(value), Prefix)
	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return Rule{}, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if !opt.Until.IsZero() {
		opt.Until = opt.Until.In(loc)
	}
	return FromROption(opt)
}

// ICalValue renders r as an RFC 5545 RRULE value (without the "RRULE:"
// name). All-day events get a DATE UNTIL; timed events get the end of the
// until day in UTC, as the RFC requires for UTC DTSTART values.
func ICalValue(r Rule, allDay bool, loc *time.Location) (string, error) {
	opt, err := r.ROption(loc)
	if err != nil {
		return "", err
	}
	if !allDay || opt.Until.IsZero() {
		return opt.RRuleString(), nil
	}
	opt.Until = time.Time{}
	s := opt.RRuleString()
	return s + ";UNTIL=" + formatUntil(r.EndDate), nil
}
