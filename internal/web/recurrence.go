package web

import (
	"fmt"
	"net/http"
	"time"

	"classcal/internal/recurrence"
	"classcal/internal/timewindow"
)

type ruleResponse struct {
	Recurrence recurrence.Rule         `json:"recurrence"`
	RRule      string                  `json:"rrule"`
	Text       string                  `json:"text"`
	Ignored    []recurrence.Diagnostic `json:"ignored,omitempty"`
}

// handleEncodeRule renders a structured rule.
//
// POST /api/recurrence/encode  {"frequency":"weekly","interval":2,"week_days":[1,4]}
func (s *Server) handleEncodeRule(w http.ResponseWriter, r *http.Request) {
	var rule recurrence.Rule
	if !decodeJSON(w, r, &rule) {
		return
	}
	encoded, err := encodeRule(rule)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rule = normalizeRule(rule)
	writeJSON(w, http.StatusOK, ruleResponse{
		Recurrence: rule,
		RRule:      encoded,
		Text:       s.describer.Describe(rule),
	})
}

type decodeRequest struct {
	RRule string `json:"rrule"`
	// Strict rejects rules with dropped parts instead of reporting them.
	Strict bool `json:"strict"`
	// RFC accepts full RFC 5545 values such as those in imported feeds.
	RFC bool `json:"rfc"`
}

// handleDecodeRule parses a rule string. Dropped parts are listed in
// "ignored"; a rule without a usable FREQ is 422.
//
// POST /api/recurrence/decode  {"rrule":"RRULE:FREQ=WEEKLY;BYDAY=MO"}
func (s *Server) handleDecodeRule(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		decoded recurrence.Decoded
		err     error
	)
	if req.RFC {
		decoded.Rule, decoded.Ignored, err = recurrence.ParseRFC(req.RRule, s.cfg.Location())
	} else {
		decoded, err = recurrence.DecodeVerbose(req.RRule)
	}
	if err == nil && req.Strict && len(decoded.Ignored) > 0 {
		err = fmt.Errorf("%w: %s", recurrence.ErrInvalidRule, decoded.Ignored[0])
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ruleResponse{
		Recurrence: decoded.Rule,
		RRule:      recurrence.Encode(decoded.Rule),
		Text:       s.describer.Describe(decoded.Rule),
		Ignored:    decoded.Ignored,
	})
}

type describeRequest struct {
	RRule      string           `json:"rrule,omitempty"`
	Recurrence *recurrence.Rule `json:"recurrence,omitempty"`
}

// handleDescribeRule returns the English text for a rule given either as a
// string or structured.
func (s *Server) handleDescribeRule(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var rule recurrence.Rule
	switch {
	case req.Recurrence != nil:
		rule = normalizeRule(*req.Recurrence)
	case req.RRule != "":
		var err error
		if rule, err = recurrence.Decode(req.RRule); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "rrule or recurrence is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": s.describer.Describe(rule)})
}

type timeWindowRequest struct {
	Date      recurrence.Date `json:"date"`
	StartTime string          `json:"start_time"`
	End       string          `json:"end"`
}

type timeWindowResponse struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

// handleTimeWindow resolves form fields into concrete timestamps in the
// configured zone.
//
// POST /api/timewindow  {"date":"2024-09-02","start_time":"09:00","end":"duration_1h30m"}
func (s *Server) handleTimeWindow(w http.ResponseWriter, r *http.Request) {
	var req timeWindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	win := timewindow.Compose(req.Date.In(s.cfg.Location()), req.StartTime, req.End, s.cfg.AllDay())
	writeJSON(w, http.StatusOK, timeWindowResponse{Start: win.Start, End: win.End, AllDay: win.AllDay})
}
