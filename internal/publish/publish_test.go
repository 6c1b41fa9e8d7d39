package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/config"
	"classcal/internal/model"
)

type fakeLister struct {
	events []model.Event
	err    error
}

func (f *fakeLister) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	return f.events, f.err
}

func TestPublisher_RunOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "calendar.ics")
	start := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	lister := &fakeLister{events: []model.Event{{
		ID:         "abc",
		Title:      "Chemistry",
		Kind:       model.KindClass,
		Start:      start,
		End:        start.Add(time.Hour),
		Recurrence: "RRULE:FREQ=WEEKLY;BYDAY=MO,WE",
	}}}

	p := New(lister, config.PublishConfig{Path: path, CalendarName: "Term 1"}, nil)
	require.NoError(t, p.RunOnce(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "X-WR-CALNAME:Term 1")
	assert.Contains(t, string(data), "SUMMARY:Chemistry")
	assert.Contains(t, string(data), "RRULE:FREQ=WEEKLY;BYDAY=MO,WE")

	ran, lastErr := p.LastRun()
	assert.False(t, ran.IsZero())
	assert.NoError(t, lastErr)
}

func TestPublisher_RunOnceListError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.ics")
	p := New(&fakeLister{err: errors.New("db down")}, config.PublishConfig{Path: path}, time.UTC)

	err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, path)

	_, lastErr := p.LastRun()
	assert.ErrorContains(t, lastErr, "db down")
}

func TestPublisher_StartDisabled(t *testing.T) {
	p := New(&fakeLister{}, config.PublishConfig{}, time.UTC)
	require.NoError(t, p.Start())
	p.Stop()
}

func TestPublisher_StartBadCron(t *testing.T) {
	p := New(&fakeLister{}, config.PublishConfig{Cron: "every now and then", Path: "x.ics"}, time.UTC)
	assert.Error(t, p.Start())
}
