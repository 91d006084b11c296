package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/domain"
)

// Event is a provider-side busy entry on one calendar.
type Event struct {
	ID          uuid.UUID
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	CalendarID  uuid.UUID
	Version     int64
}

const eventColumns = `id, title, description, start_time, end_time, location, calendar_id, version`

func (db *DB) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	e := &Event{}
	err := db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Location, &e.CalendarID, &e.Version)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("event %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

func (db *DB) ListEventsByCalendar(ctx context.Context, calendarID uuid.UUID) ([]Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE calendar_id = $1
		ORDER BY start_time, id
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEventsInWindow returns the calendar's events overlapping [from, to).
func (db *DB) ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE calendar_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id
	`, calendarID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events in window: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Location, &e.CalendarID, &e.Version); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) CreateEvent(ctx context.Context, e *Event) error {
	e.Version = 1
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, start_time, end_time, location, calendar_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Title, e.Description, e.StartTime, e.EndTime, e.Location, e.CalendarID, e.Version)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEvent persists e with a compare-and-swap on e.Version.
func (db *DB) UpdateEvent(ctx context.Context, e *Event) error {
	err := db.QueryRowContext(ctx, `
		UPDATE events
		SET title = $1, description = $2, start_time = $3, end_time = $4, location = $5, calendar_id = $6, version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING version
	`, e.Title, e.Description, e.StartTime, e.EndTime, e.Location, e.CalendarID, e.ID, e.Version).Scan(&e.Version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update event %s: %w", e.ID, domain.ErrWriteConflict)
	}
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (db *DB) DeleteEvent(ctx context.Context, id uuid.UUID, version int64) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM events WHERE id = $1 AND version = $2
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete event %s: %w", id, domain.ErrWriteConflict)
	}
	return nil
}
