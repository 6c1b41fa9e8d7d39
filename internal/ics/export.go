// Package ics converts stored events to and from iCalendar feeds.
package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/recurrence"
)

// ProductID identifies feeds produced by this service.
const ProductID = "-//classcal//Class Calendar//EN"

// uidDomain is appended to event ids to form globally unique UIDs.
const uidDomain = "@classcal"

// ExportOptions controls how a feed is rendered.
type ExportOptions struct {
	// Name is the calendar display name. Empty leaves it unset.
	Name string
	// Location is the zone all-day dates and rule end dates are read in.
	// Nil means UTC.
	Location *time.Location
	// Stamp is written as DTSTAMP on every event. Zero means now.
	Stamp time.Time
}

// Export builds a PUBLISH calendar holding one VEVENT per event. Recurring
// events carry their rule as RRULE; a stored rule that cannot be decoded is
// logged and the event is exported as a single occurrence.
func Export(events []model.Event, opts ExportOptions) *ical.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for i := range events {
		addEvent(cal, &events[i], loc, stamp)
	}
	return cal
}

// Write serializes the feed for events to w.
func Write(w io.Writer, events []model.Event, opts ExportOptions) error {
	return Export(events, opts).SerializeTo(w)
}

func addEvent(cal *ical.Calendar, ev *model.Event, loc *time.Location, stamp time.Time) {
	vev := cal.AddEvent(ev.ID + uidDomain)
	vev.SetDtStampTime(stamp)
	if !ev.CreatedAt.IsZero() {
		vev.SetCreatedTime(ev.CreatedAt)
	}
	if !ev.UpdatedAt.IsZero() {
		vev.SetModifiedAt(ev.UpdatedAt)
	}

	vev.SetSummary(ev.Title)
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}
	if ev.MeetingURL != "" {
		vev.SetURL(ev.MeetingURL)
	}
	vev.AddCategory(string(ev.Kind))

	if ev.AllDay {
		// DTEND is exclusive for DATE values.
		day := ev.Start.In(loc)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
	}

	if ev.Recurrence == "" {
		return
	}
	rule, err := recurrence.Decode(ev.Recurrence)
	if err != nil {
		appLog.Error("export: stored recurrence is invalid; exporting single occurrence", err, "id", ev.ID)
		return
	}
	value, err := recurrence.ICalValue(rule, ev.AllDay, loc)
	if err != nil {
		appLog.Error("export: recurrence not representable; exporting single occurrence", err, "id", ev.ID)
		return
	}
	vev.AddRrule(value)
}
