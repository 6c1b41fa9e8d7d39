package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefix starts every encoded rule.
const Prefix = "RRULE:"

// ErrInvalidRule is returned when a rule string carries no usable FREQ.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Diagnostic describes a token or list entry the decoder dropped.
type Diagnostic struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Token, d.Reason)
}

// Decoded is the result of DecodeVerbose.
type Decoded struct {
	Rule    Rule
	Ignored []Diagnostic
}

// Encode renders r as "RRULE:FREQ=...;INTERVAL=...;BYDAY=...;UNTIL=...;COUNT=...".
// Parts that are defaults or malformed are left out; FREQ is always written.
func Encode(r Rule) string {
	parts := make([]string, 0, 5)
	parts = append(parts, "FREQ="+strings.ToUpper(string(r.Frequency)))

	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}

	if days := uniqueWeekdays(r.WeekDays); len(days) > 0 {
		codes := make([]string, len(days))
		for i, d := range days {
			codes[i] = WeekdayCode(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}

	if !r.EndDate.IsZero() && r.EndDate.Valid() {
		parts = append(parts, "UNTIL="+formatUntil(r.EndDate))
	}

	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}

	return Prefix + strings.Join(parts, ";")
}

// Decode parses a rule string produced by Encode. Malformed INTERVAL, BYDAY,
// UNTIL and COUNT values are dropped silently; only a missing or unknown FREQ
// fails, with ErrInvalidRule.
func Decode(text string) (Rule, error) {
	d, err := DecodeVerbose(text)
	if err != nil {
		return Rule{}, err
	}
	return d.Rule, nil
}

// DecodeStrict is Decode that also fails when any token had to be dropped.
func DecodeStrict(text string) (Rule, error) {
	d, err := DecodeVerbose(text)
	if err != nil {
		return Rule{}, err
	}
	if len(d.Ignored) > 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrInvalidRule, d.Ignored[0])
	}
	return d.Rule, nil
}

// DecodeVerbose is Decode that also reports everything it ignored.
func DecodeVerbose(text string) (Decoded, error) {
	var ignored []Diagnostic
	drop := func(token, reason string) {
		ignored = append(ignored, Diagnostic{Token: token, Reason: reason})
	}

	rule := New("")
	body := strings.TrimPrefix(strings.TrimSpace(text), Prefix)

	for _, token := range strings.Split(body, ";") {
		if token == "" {
			continue
		}
		key, value, _ := strings.Cut(token, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			drop(token, "missing key or value")
			continue
		}

		switch key {
		case "FREQ":
			f := Frequency(strings.ToLower(value))
			if !f.Valid() {
				drop(token, "unknown frequency")
				continue
			}
			rule.Frequency = f

		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				drop(token, "interval must be a positive integer")
				continue
			}
			rule.Interval = n

		case "BYDAY":
			days := make([]time.Weekday, 0, 7)
			var seen [7]bool
			for _, code := range strings.Split(value, ",") {
				code = strings.ToUpper(strings.TrimSpace(code))
				d, ok := ParseWeekdayCode(code)
				if !ok {
					drop("BYDAY="+code, "unknown weekday code")
					continue
				}
				if seen[d] {
					drop("BYDAY="+code, "repeated weekday")
					continue
				}
				seen[d] = true
				days = append(days, d)
			}
			if len(days) > 0 {
				rule.WeekDays = days
			}

		case "UNTIL":
			d, ok := parseUntil(value)
			if !ok {
				drop(token, "until must be a valid YYYYMMDD date")
				continue
			}
			rule.EndDate = d

		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				drop(token, "count must be a positive integer")
				continue
			}
			rule.Count = n

		default:
			drop(token, "unsupported property")
		}
	}

	if rule.Frequency == "" {
		return Decoded{Ignored: ignored}, fmt.Errorf("%w: missing FREQ in %q", ErrInvalidRule, text)
	}
	return Decoded{Rule: rule, Ignored: ignored}, nil
}
