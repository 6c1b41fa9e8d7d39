package recurrence

import (
	"fmt"
	"time"
)

const (
	untilLayout = "20060102"
	dateLayout  = "2006-01-02"
)

// Date is a calendar day without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date y-m-d. It is not normalized; check Valid.
func NewDate(y int, m time.Month, d int) Date {
	return Date{Year: y, Month: m, Day: d}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Valid reports whether d names a real calendar day (no 2024-02-30).
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	return DateOf(d.In(time.UTC)) == d
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts YYYY-MM-DD or an RFC 3339 timestamp, whose date part
// is kept as written.
func (d *Date) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("recurrence: invalid date %q", string(b))
	}
	*d = DateOf(t)
	return nil
}

// parseUntil parses the YYYYMMDD form used in UNTIL tokens.
func parseUntil(v string) (Date, bool) {
	if len(v) != len(untilLayout) {
		return Date{}, false
	}
	t, err := time.Parse(untilLayout, v)
	if err != nil {
		return Date{}, false
	}
	d := DateOf(t)
	return d, d.Valid()
}

func formatUntil(d Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}
