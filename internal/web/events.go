package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/recurrence"
	"classcal/internal/storage"
	"classcal/internal/timewindow"
)

// eventRequest is the body of POST /api/events and PUT /api/events/{id}.
//
// Times come either as explicit Start/End timestamps or as the form fields
// Date + StartTime + EndTime, where EndTime is "HH:mm" or a duration token
// such as "duration_1h30m".
type eventRequest struct {
	Title       string     `json:"title"`
	Kind        model.Kind `json:"kind"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	MeetingURL  string     `json:"meeting_url"`

	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	Date      recurrence.Date `json:"date"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`

	// AllDay overrides the all-day classification when set.
	AllDay *bool `json:"all_day,omitempty"`

	Recurrence *recurrence.Rule `json:"recurrence,omitempty"`
}

// eventResponse is the JSON view of a stored event. Recurrence is null when
// the event does not repeat or its stored rule cannot be decoded.
type eventResponse struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Kind           model.Kind       `json:"kind"`
	Description    string           `json:"description"`
	Location       string           `json:"location"`
	MeetingURL     string           `json:"meeting_url"`
	AllDay         bool             `json:"all_day"`
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	Recurrence     *recurrence.Rule `json:"recurrence"`
	RRule          *string          `json:"rrule"`
	RecurrenceText string           `json:"recurrence_text,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type eventsResponse struct {
	Events          []eventResponse `json:"events"`
	RangeStart      *time.Time      `json:"range_start,omitempty"`
	RangeEnd        *time.Time      `json:"range_end,omitempty"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// handleListEvents returns stored events overlapping a date range.
//
// GET /api/events?from=2024-09-01&to=2024-09-30
//   - from: first day (inclusive), default open
//   - to:   last day (inclusive), default from + days
//   - days: range length when to is absent (default: open)
//
// Recurring events are always listed; clients expand them.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	loc := s.cfg.Location()
	q := r.URL.Query()

	var from, to time.Time
	if v := q.Get("from"); v != "" {
		var d recurrence.Date
		if err := d.UnmarshalText([]byte(v)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		from = d.In(loc)
	}
	if v := q.Get("to"); v != "" {
		var d recurrence.Date
		if err := d.UnmarshalText([]byte(v)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		to = d.In(loc).AddDate(0, 0, 1)
	} else if days := parseIntDefault(q.Get("days"), 0); days > 0 && !from.IsZero() {
		to = from.AddDate(0, 0, days)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	events, err := s.events.List(r.Context(), from, to)
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := eventsResponse{
		Events:          make([]eventResponse, 0, len(events)),
		DisplayTimeZone: loc.String(),
	}
	if !from.IsZero() {
		resp.RangeStart = &from
	}
	if !to.IsZero() {
		resp.RangeEnd = &to
	}
	for i := range events {
		resp.Events = append(resp.Events, s.toResponse(&events[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(ev))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.toEvent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.events.Create(r.Context(), &ev); err != nil {
		appLog.Error("api events: create failed", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	s.invalidateFeed()

	appLog.Info("event created", "id", ev.ID, "kind", ev.Kind, "recurring", ev.Recurrence != "")
	writeJSON(w, http.StatusCreated, s.toResponse(&ev))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.toEvent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = mux.Vars(r)["id"]
	if err := s.events.Update(r.Context(), &ev); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidateFeed()
	writeJSON(w, http.StatusOK, s.toResponse(&ev))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidateFeed()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	appLog.Error("api events: storage failed", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

// toEvent validates req and builds the event to store.
func (s *Server) toEvent(req eventRequest) (model.Event, error) {
	loc := s.cfg.Location()
	rule := s.cfg.AllDay()

	ev := model.Event{
		Title:       req.Title,
		Kind:        req.Kind,
		Description: req.Description,
		Location:    req.Location,
		MeetingURL:  req.MeetingURL,
	}
	if ev.Kind == "" {
		ev.Kind = model.KindClass
	}

	switch {
	case req.Start != nil && req.End != nil:
		ev.Start, ev.End = *req.Start, *req.End
		ev.AllDay = rule.Matches(ev.Start.In(loc), ev.End.In(loc))
	case !req.Date.IsZero() && req.StartTime != "":
		win := timewindow.Compose(req.Date.In(loc), req.StartTime, req.EndTime, rule)
		ev.Start, ev.End, ev.AllDay = win.Start, win.End, win.AllDay
	default:
		return ev, errors.New("either start and end, or date and start_time, are required")
	}
	if req.AllDay != nil {
		ev.AllDay = *req.AllDay
	}

	if req.Recurrence != nil {
		encoded, err := encodeRule(*req.Recurrence)
		if err != nil {
			return ev, err
		}
		ev.Recurrence = encoded
	}

	return ev, ev.Validate()
}

// normalizeRule applies request defaults: interval 1 and no weekdays.
func normalizeRule(r recurrence.Rule) recurrence.Rule {
	if r.Interval == 0 {
		r = r.WithInterval(1)
	}
	if r.WeekDays == nil {
		r = r.WithWeekDays()
	}
	return r
}

// encodeRule validates a client rule and renders its stored form.
func encodeRule(r recurrence.Rule) (string, error) {
	r = normalizeRule(r)
	if err := r.Validate(); err != nil {
		return "", err
	}
	encoded := recurrence.Encode(r)
	if len(encoded) > recurrence.MaxStoredLength {
		return "", fmt.Errorf("recurrence: encoded rule longer than %d characters", recurrence.MaxStoredLength)
	}
	return encoded, nil
}

func (s *Server) toResponse(ev *model.Event) eventResponse {
	loc := s.cfg.Location()
	resp := eventResponse{
		ID:          ev.ID,
		Title:       ev.Title,
		Kind:        ev.Kind,
		Description: ev.Description,
		Location:    ev.Location,
		MeetingURL:  ev.MeetingURL,
		AllDay:      ev.AllDay,
		Start:       ev.Start.In(loc),
		End:         ev.End.In(loc),
		CreatedAt:   ev.CreatedAt,
		UpdatedAt:   ev.UpdatedAt,
	}
	if ev.Recurrence == "" {
		return resp
	}

	raw := ev.Recurrence
	resp.RRule = &raw
	rule, err := recurrence.Decode(ev.Recurrence)
	if err != nil {
		appLog.Error("stored recurrence could not be decoded", err, "id", ev.ID, "rrule", ev.Recurrence)
		return resp
	}
	resp.Recurrence = &rule
	resp.RecurrenceText = s.describer.Describe(rule)
	return resp
}
