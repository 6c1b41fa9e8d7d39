package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/model"
)

const feedCacheTTL = 30 * time.Second

// feedCache holds a rendered /calendar.ics body and its timestamp.
type feedCache struct {
	body      []byte
	updatedAt time.Time
}

// handleFeed serves every stored event as an iCalendar feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	// Fast path: return cached body if it's still fresh.
	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && now.Sub(fc.updatedAt) < feedCacheTTL {
		writeFeed(w, fc.body)
		return
	}

	events, err := s.events.List(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		appLog.Error("feed: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	var buf bytes.Buffer
	if err := ics.Write(&buf, events, ics.ExportOptions{
		Name:     s.cfg.Publish.CalendarName,
		Location: s.cfg.Location(),
	}); err != nil {
		appLog.Error("feed: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render feed")
		return
	}

	s.feedMu.Lock()
	s.feedCache = &feedCache{body: buf.Bytes(), updatedAt: time.Now()}
	s.feedMu.Unlock()

	writeFeed(w, buf.Bytes())
}

func writeFeed(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) invalidateFeed() {
	s.feedMu.Lock()
	s.feedCache = nil
	s.feedMu.Unlock()
}

type importRequest struct {
	URL  string     `json:"url"`
	Kind model.Kind `json:"kind"`
}

type importResponse struct {
	Imported int             `json:"imported"`
	Events   []eventResponse `json:"events"`
	Errors   []string        `json:"errors,omitempty"`
}

// handleImport stores the events of an iCalendar feed.
//
// POST /api/import with Content-Type text/calendar and the feed as body, or
// with JSON {"url": "https://...", "kind": "class"} to download it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		body []byte
		kind model.Kind
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/calendar" {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, ics.MaxFeedSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		kind = model.Kind(r.URL.Query().Get("kind"))
	} else {
		var req importRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, "expected a text/calendar body or {\"url\": ...}")
			return
		}
		if s.fetcher == nil {
			writeError(w, http.StatusBadRequest, "importing by url is disabled")
			return
		}
		res, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			appLog.Error("import: fetch failed", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		body, kind = res.Body, req.Kind
	}
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	parsed, errs := ics.Parse(body, ics.ImportOptions{
		Location:    s.cfg.Location(),
		AllDayRule:  s.cfg.AllDay(),
		DefaultKind: kind,
	})
	if len(parsed) == 0 && len(errs) > 0 {
		writeError(w, http.StatusUnprocessableEntity, errorsAggregate(errs).Error())
		return
	}

	resp := importResponse{Events: make([]eventResponse, 0, len(parsed))}
	for i := range parsed {
		ev := &parsed[i]
		if err := s.events.Create(ctx, ev); err != nil {
			errs = append(errs, err)
			continue
		}
		resp.Events = append(resp.Events, s.toResponse(ev))
	}
	resp.Imported = len(resp.Events)
	resp.Errors = errorStrings(errs)
	if resp.Imported > 0 {
		s.invalidateFeed()
	}

	appLog.Info("import completed", "imported", resp.Imported, "error_count", len(errs))
	writeJSON(w, http.StatusOK, resp)
}
