package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/model"
	"classcal/internal/timewindow"
)

func exportFixture() []model.Event {
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	day := time.Date(2024, time.June, 7, 0, 0, 0, 0, time.UTC)
	return []model.Event{
		{
			ID:         "lecture",
			Title:      "Physics 101",
			Kind:       model.KindClass,
			Location:   "Hall B",
			MeetingURL: "https://meet.example.com/phys",
			Start:      start,
			End:        start.Add(90 * time.Minute),
			Recurrence: "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO;UNTIL=20240628",
		},
		{
			ID:         "exam-day",
			Title:      "Midterm",
			Kind:       model.KindExam,
			AllDay:     true,
			Start:      day,
			End:        day,
			Recurrence: "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;UNTIL=20240628;COUNT=3",
		},
		{
			ID:         "broken",
			Title:      "Office hours",
			Kind:       model.KindMeeting,
			Start:      start,
			End:        start.Add(time.Hour),
			Recurrence: "RRULE:INTERVAL=2",
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, Write(&buf, exportFixture(), ExportOptions{Name: "Classes", Stamp: stamp}))
	out := buf.String()

	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "PRODID:"+ProductID)
	assert.Contains(t, out, "X-WR-CALNAME:Classes")
	assert.Contains(t, out, "UID:lecture@classcal")
	assert.Contains(t, out, "DTSTAMP:20240501T000000Z")

	assert.Contains(t, out, "DTSTART:20240603T090000Z")
	assert.Contains(t, out, "DTEND:20240603T103000Z")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;UNTIL=20240628T235959Z;BYDAY=MO")
	assert.Contains(t, out, "URL:https://meet.example.com/phys")
	assert.Contains(t, out, "CATEGORIES:class")

	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240607")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240608")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;UNTIL=20240628")
	// UNTIL and COUNT never appear together.
	assert.NotContains(t, out, "COUNT=")

	// Undecodable stored rule: event kept, no RRULE.
	assert.Contains(t, out, "UID:broken@classcal")
	assert.Equal(t, 2, strings.Count(out, "RRULE:"))
}

func TestExport_RoundTripThroughParse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, exportFixture()[:2], ExportOptions{}))

	events, errs := Parse(buf.Bytes(), ImportOptions{AllDayRule: timewindow.AllDayMidnight})
	require.Empty(t, errs)
	require.Len(t, events, 2)

	lecture := events[0]
	assert.Equal(t, "Physics 101", lecture.Title)
	assert.Equal(t, model.KindClass, lecture.Kind)
	assert.Equal(t, "Hall B", lecture.Location)
	assert.Equal(t, "https://meet.example.com/phys", lecture.MeetingURL)
	assert.False(t, lecture.AllDay)
	assert.True(t, lecture.Start.Equal(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, 90*time.Minute, lecture.Duration())
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO;UNTIL=20240628", lecture.Recurrence)

	exam := events[1]
	assert.Equal(t, model.KindExam, exam.Kind)
	assert.True(t, exam.AllDay)
	assert.Equal(t, time.Date(2024, time.June, 7, 0, 0, 0, 0, time.UTC), exam.Start)
	assert.Equal(t, exam.Start, exam.End)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;UNTIL=20240628", exam.Recurrence)
}
