package recurrence

import (
	"fmt"
	"strings"
	"time"
)

const untilTextLayout = "January 2, 2006"

// Describer renders rules as English sentences.
type Describer struct {
	// LegacyMultiDay reproduces the old text for weekly rules with an
	// interval above one and several weekdays, which printed only
	// " on Mon, Wed" and lost the "Every N weeks" part.
	LegacyMultiDay bool
}

// Describe renders r with the default Describer.
func Describe(r Rule) string {
	return Describer{}.Describe(r)
}

// Describe returns e.g. "Every Monday", "Every 2 weeks on Mon, Thu" or
// "Every day until March 1, 2024". Unknown frequencies yield "".
func (d Describer) Describe(r Rule) string {
	if !r.Frequency.Valid() {
		return ""
	}

	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	var days []time.Weekday
	if r.Frequency == Weekly {
		days = uniqueWeekdays(r.WeekDays)
	}

	var b strings.Builder
	switch {
	case interval == 1 && len(days) == 1:
		b.WriteString("Every " + days[0].String())
	case interval == 1 && len(days) > 1:
		b.WriteString("Every week on " + shortNames(days))
	case interval == 1:
		b.WriteString("Every " + r.Frequency.unit())
	case len(days) == 1:
		fmt.Fprintf(&b, "Every %d %ss on %s", interval, r.Frequency.unit(), days[0])
	case len(days) > 1 && d.LegacyMultiDay:
		b.WriteString(" on " + shortNames(days))
	case len(days) > 1:
		fmt.Fprintf(&b, "Every %d %ss on %s", interval, r.Frequency.unit(), shortNames(days))
	default:
		fmt.Fprintf(&b, "Every %d %ss", interval, r.Frequency.unit())
	}

	switch {
	case !r.EndDate.IsZero() && r.EndDate.Valid():
		b.WriteString(" until " + r.EndDate.In(time.UTC).Format(untilTextLayout))
	case r.Count > 0:
		fmt.Fprintf(&b, ", %d times", r.Count)
	}

	return b.String()
}

// shortNames joins three-letter weekday names in the given order.
func shortNames(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, wd := range days {
		names[i] = wd.String()[:3]
	}
	return strings.Join(names, ", ")
}
