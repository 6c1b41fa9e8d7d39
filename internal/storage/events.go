package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classcal/internal/model"
	"classcal/internal/recurrence"
)

// ErrNotFound is returned when no event has the requested id.
var ErrNotFound = errors.New("storage: event not found")

// timeLayout sorts lexicographically in UTC, so range filters can compare
// the TEXT columns directly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const eventColumns = `id, title, kind, description, location, meeting_url, all_day,
	start_at, end_at, recurrence, created_at, updated_at`

// EventRepository provides data access for events.
type EventRepository struct {
	db  *DB
	now func() time.Time
}

// NewEventRepository creates a repository on db.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db, now: time.Now}
}

// Create assigns an id and timestamps to ev and inserts it.
func (r *EventRepository) Create(ctx context.Context, ev *model.Event) error {
	if err := checkEvent(ev); err != nil {
		return err
	}
	now := r.now().UTC()
	ev.ID = uuid.NewString()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.Title, string(ev.Kind), ev.Description, ev.Location, ev.MeetingURL, ev.AllDay,
		formatTime(ev.Start), formatTime(ev.End), nullString(ev.Recurrence),
		formatTime(ev.CreatedAt), formatTime(ev.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: inserting event: %w", err)
	}
	return nil
}

// Get returns the event with the given id or ErrNotFound.
func (r *EventRepository) Get(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: querying event: %w", err)
	}
	return ev, nil
}

// List returns events overlapping [from, to) ordered by start. Recurring
// events are always included since their later occurrences are not stored.
// A zero from or to leaves that side open.
func (r *EventRepository) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1 = 1`
	args := []any{}
	if !to.IsZero() {
		query += ` AND start_at < ?`
		args = append(args, formatTime(to))
	}
	if !from.IsZero() {
		query += ` AND (end_at > ? OR recurrence IS NOT NULL)`
		args = append(args, formatTime(from))
	}
	query += ` ORDER BY start_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: querying events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scanning event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// Update overwrites the stored fields of ev.ID and refreshes UpdatedAt.
func (r *EventRepository) Update(ctx context.Context, ev *model.Event) error {
	if err := checkEvent(ev); err != nil {
		return err
	}
	ev.UpdatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET title = ?, kind = ?, description = ?, location = ?, meeting_url = ?,
			all_day = ?, start_at = ?, end_at = ?, recurrence = ?, updated_at = ?
		WHERE id = ?
	`,
		ev.Title, string(ev.Kind), ev.Description, ev.Location, ev.MeetingURL,
		ev.AllDay, formatTime(ev.Start), formatTime(ev.End), nullString(ev.Recurrence),
		formatTime(ev.UpdatedAt), ev.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: updating event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	stored, err := r.Get(ctx, ev.ID)
	if err != nil {
		return err
	}
	ev.CreatedAt = stored.CreatedAt
	return nil
}

// Delete removes the event with the given id.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: deleting event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func checkEvent(ev *model.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if len(ev.Recurrence) > recurrence.MaxStoredLength {
		return fmt.Errorf("event: recurrence longer than %d characters", recurrence.MaxStoredLength)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var ev model.Event
	var kind string
	var rec sql.NullString
	var startAt, endAt, createdAt, updatedAt string
	if err := row.Scan(
		&ev.ID, &ev.Title, &kind, &ev.Description, &ev.Location, &ev.MeetingURL, &ev.AllDay,
		&startAt, &endAt, &rec, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	ev.Kind = model.Kind(kind)
	ev.Recurrence = rec.String

	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&ev.Start, startAt}, {&ev.End, endAt}, {&ev.CreatedAt, createdAt}, {&ev.UpdatedAt, updatedAt},
	} {
		if *f.dst, err = time.Parse(timeLayout, f.src); err != nil {
			return nil, fmt.Errorf("parsing time %q: %w", f.src, err)
		}
	}
	return &ev, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
