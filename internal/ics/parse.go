package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/recurrence"
	"classcal/internal/timewindow"
)

// ImportOptions controls how VEVENTs are mapped onto events.
type ImportOptions struct {
	// Location is used for floating times and DATE values. Nil means UTC.
	Location *time.Location
	// AllDayRule shapes the start/end of imported all-day events.
	AllDayRule timewindow.AllDayRule
	// DefaultKind is used when no CATEGORIES value names a known kind.
	DefaultKind model.Kind
}

// Parse converts the VEVENTs of an iCalendar payload into events ready to be
// stored. Events that cannot be represented are skipped and reported in the
// error slice; the rest are still returned.
//
//   - All-day events are detected from DTSTART (VALUE=DATE or no time part).
//   - RRULE values are narrowed to what a stored rule can express; anything
//     dropped is logged.
//   - Overridden instances (RECURRENCE-ID) and EXDATE are not supported and
//     are skipped or ignored.
func Parse(body []byte, opts ImportOptions) ([]model.Event, []error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, []error{errors.New("ics: empty body")}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if !opts.DefaultKind.Valid() {
		opts.DefaultKind = model.KindOther
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, []error{fmt.Errorf("ics: parsing calendar: %w", err)}
	}

	events := make([]model.Event, 0)
	var errs []error

	for _, vev := range cal.Events() {
		uid := propValue(vev, ical.ComponentPropertyUniqueId)
		if vev.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			appLog.Warn("ics: skipping overridden instance", "uid", uid)
			continue
		}
		ev, perr := parseVEvent(vev, opts)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "uid", uid)
			errs = append(errs, fmt.Errorf("ics: event %q: %w", uid, perr))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events), "error_count", len(errs))
	return events, errs
}

func parseVEvent(vev *ical.VEvent, opts ImportOptions) (model.Event, error) {
	uid := propValue(vev, ical.ComponentPropertyUniqueId)
	out := model.Event{
		Title:       propValue(vev, ical.ComponentPropertySummary),
		Kind:        opts.DefaultKind,
		Description: propValue(vev, ical.ComponentPropertyDescription),
		Location:    propValue(vev, ical.ComponentPropertyLocation),
		MeetingURL:  propValue(vev, ical.ComponentPropertyUrl),
	}
	if out.Title == "" {
		out.Title = "Untitled"
	}
	for _, p := range vev.GetProperties(ical.ComponentPropertyCategories) {
		if k, ok := kindOf(p.Value); ok {
			out.Kind = k
			break
		}
	}

	dtStart := vev.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}

	if isDateValue(dtStart) {
		if err := setAllDay(&out, vev, opts); err != nil {
			return out, err
		}
	} else {
		if err := setTimed(&out, vev, opts.Location); err != nil {
			return out, err
		}
	}

	if p := vev.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule, ignored, err := recurrence.ParseRFC(p.Value, opts.Location)
		if err != nil {
			return out, err
		}
		for _, d := range ignored {
			appLog.Warn("ics: rrule part ignored", "uid", uid, "token", d.Token, "reason", d.Reason)
		}
		encoded := recurrence.Encode(rule)
		if len(encoded) > recurrence.MaxStoredLength {
			return out, fmt.Errorf("rrule longer than %d characters", recurrence.MaxStoredLength)
		}
		out.Recurrence = encoded
	}
	if len(vev.GetProperties(ical.ComponentPropertyExdate)) > 0 {
		appLog.Warn("ics: EXDATE ignored", "uid", uid)
	}

	return out, out.Validate()
}

// setAllDay maps DATE values. A single-day event follows the configured
// all-day rule; a multi-day span is kept as a timed midnight-to-midnight event.
func setAllDay(out *model.Event, vev *ical.VEvent, opts ImportOptions) error {
	start, err := vev.GetAllDayStartAt()
	if err != nil {
		return err
	}
	startDay := onDay(start, opts.Location)

	endDay := startDay.AddDate(0, 0, 1)
	if vev.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := vev.GetAllDayEndAt()
		if err != nil {
			return err
		}
		endDay = onDay(end, opts.Location)
	}

	if !endDay.After(startDay.AddDate(0, 0, 1)) {
		out.AllDay = true
		out.Start, out.End = opts.AllDayRule.Bounds(startDay)
		return nil
	}
	out.Start, out.End = startDay, endDay
	return nil
}

func setTimed(out *model.Event, vev *ical.VEvent, loc *time.Location) error {
	start, err := vev.GetStartAt()
	if err != nil {
		return err
	}
	out.Start = reinterpretFloating(vev.GetProperty(ical.ComponentPropertyDtStart), start, loc)

	out.End = out.Start
	if p := vev.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, err := vev.GetEndAt()
		if err != nil {
			return err
		}
		out.End = reinterpretFloating(p, end, loc)
	}
	return nil
}

// reinterpretFloating moves a floating time (no TZID, no Z) from the process
// zone, where the parser puts it, to loc keeping the wall clock.
func reinterpretFloating(p *ical.IANAProperty, t time.Time, loc *time.Location) time.Time {
	if strings.HasSuffix(p.Value, "Z") {
		return t
	}
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func onDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func kindOf(categories string) (model.Kind, bool) {
	for _, c := range strings.Split(categories, ",") {
		k := model.Kind(strings.ToLower(strings.TrimSpace(c)))
		if k.Valid() {
			return k, true
		}
	}
	return "", false
}

func propValue(vev *ical.VEvent, prop ical.ComponentProperty) string {
	if p := vev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}
