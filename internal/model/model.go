package model

import (
	"fmt"
	"time"
)

// Kind classifies a calendar event.
type Kind string

const (
	KindClass   Kind = "class"
	KindExam    Kind = "exam"
	KindMeeting Kind = "meeting"
	KindOther   Kind = "other"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindClass, KindExam, KindMeeting, KindOther:
		return true
	}
	return false
}

// Event is a stored calendar entry. Recurring events keep a single row; the
// recurrence is carried as its encoded rule string and never expanded here.
type Event struct {
	ID string

	Title       string
	Kind        Kind
	Description string
	Location    string

	// MeetingURL is the online meeting link (video call, stream), if any.
	MeetingURL string

	AllDay bool

	// Start / End of the first occurrence.
	Start time.Time
	End   time.Time

	// Recurrence is the encoded rule ("RRULE:FREQ=..."), empty for one-off events.
	Recurrence string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields every stored event must have.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("event: title is required")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("event: unknown kind %q", e.Kind)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("event: start and end are required")
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event: end %s is before start %s", e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// Duration is the length of a single occurrence.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
