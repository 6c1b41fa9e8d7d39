package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a\r\n" +
	"SUMMARY:Biology\r\n" +
	"DTSTART;TZID=Asia/Seoul:20240902T090000\r\n" +
	"DTEND;TZID=Asia/Seoul:20240902T100000\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=MO,WE\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b\r\n" +
	"SUMMARY:Broken\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestFeed(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events", `{
		"title": "History", "date": "2024-09-02", "start_time": "11:00", "end_time": "12:00",
		"recurrence": {"frequency": "weekly", "week_days": [1]}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "X-WR-CALNAME:Classes")
	assert.Contains(t, body, "SUMMARY:History")
	assert.Contains(t, body, "DTSTART:20240902T020000Z")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=MO")

	// Writes invalidate the cached feed.
	rec = do(t, h, http.MethodPost, "/api/events", `{"title": "Art", "date": "2024-09-03", "start_time": "11:00", "end_time": "12:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodGet, "/calendar.ics", "")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Art")
}

func TestImport_Body(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/import?kind=class", strings.NewReader(importBody))
	req.Header.Set("Content-Type", "text/calendar")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, resp["imported"])
	assert.Len(t, resp["errors"], 1)
	ev := resp["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "Biology", ev["title"])
	assert.Equal(t, "class", ev["kind"])
	assert.Equal(t, "2024-09-02T09:00:00+09:00", ev["start"])
	assert.Equal(t, "Every week on Mon, Wed", ev["recurrence_text"])

	rec = do(t, h, http.MethodGet, "/api/events", "")
	assert.Len(t, decode[map[string]any](t, rec)["events"], 1)
}

func TestImport_URL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(importBody))
	}))
	defer upstream.Close()

	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodPost, "/api/import", `{"url": "`+upstream.URL+`/feed.ics", "kind": "meeting"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, resp["imported"])
	assert.Equal(t, "meeting", resp["events"].([]any)[0].(map[string]any)["kind"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/import", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/import",
		`{"url": "`+upstream.URL+`", "kind": "party"}`).Code)
}

func TestImport_Unparseable(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
