package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/model"
)

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventRepository(db)
}

func sampleEvent(start time.Time) *model.Event {
	return &model.Event{
		Title:      "Linear Algebra",
		Kind:       model.KindClass,
		Location:   "Room 204",
		MeetingURL: "https://meet.example.com/abc",
		Start:      start,
		End:        start.Add(90 * time.Minute),
	}
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)
	assert.Equal(t, path, db.Path())
}

func TestEventRepository_CreateGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	ev := sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, seoul))
	ev.Recurrence = "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,TH"

	require.NoError(t, repo.Create(ctx, ev))
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	got, err := repo.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Title, got.Title)
	assert.Equal(t, model.KindClass, got.Kind)
	assert.Equal(t, ev.MeetingURL, got.MeetingURL)
	assert.Equal(t, ev.Recurrence, got.Recurrence)
	assert.True(t, ev.Start.Equal(got.Start))
	assert.True(t, ev.End.Equal(got.End))
	assert.Equal(t, time.UTC, got.Start.Location())
}

func TestEventRepository_NullRecurrence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ev := sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, ev))

	var isNull bool
	require.NoError(t, repo.db.QueryRow(`SELECT recurrence IS NULL FROM events WHERE id = ?`, ev.ID).Scan(&isNull))
	assert.True(t, isNull)

	got, err := repo.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Recurrence)
}

func TestEventRepository_RejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ev := sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC))
	ev.Recurrence = "RRULE:" + strings.Repeat("X", 500)
	assert.Error(t, repo.Create(ctx, ev))

	ev = sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC))
	ev.Title = ""
	assert.Error(t, repo.Create(ctx, ev))
}

func TestEventRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	early := sampleEvent(base)
	early.Title = "early"
	weekly := sampleEvent(base.Add(-24 * time.Hour))
	weekly.Title = "weekly"
	weekly.Recurrence = "RRULE:FREQ=WEEKLY;INTERVAL=1"
	late := sampleEvent(base.AddDate(0, 1, 0))
	late.Title = "late"
	for _, ev := range []*model.Event{early, weekly, late} {
		require.NoError(t, repo.Create(ctx, ev))
	}

	all, err := repo.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"weekly", "early", "late"}, titles(all))

	// The recurring event started before the window but still applies.
	window, err := repo.List(ctx, base.Add(3*time.Hour), base.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.Equal(t, []string{"weekly"}, titles(window))

	none, err := repo.List(ctx, time.Time{}, base.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestEventRepository_UpdateDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ev := sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, ev))
	created := ev.CreatedAt

	later := created.Add(time.Hour)
	repo.now = func() time.Time { return later }

	ev.Title = "Linear Algebra II"
	ev.Recurrence = "RRULE:FREQ=DAILY;INTERVAL=2"
	require.NoError(t, repo.Update(ctx, ev))
	assert.True(t, ev.UpdatedAt.Equal(later))
	assert.True(t, ev.CreatedAt.Equal(created))

	got, err := repo.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra II", got.Title)
	assert.Equal(t, "RRULE:FREQ=DAILY;INTERVAL=2", got.Recurrence)

	require.NoError(t, repo.Delete(ctx, ev.ID))
	_, err = repo.Get(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, ev.ID), ErrNotFound)

	missing := sampleEvent(time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC))
	missing.ID = "does-not-exist"
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)
}

func titles(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}
