package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"meetsync/internal/domain"
)

// UserCalendar is one row of the derived "user owns calendar" projection.
// The external calendar id duplicates the provider-side identifier; the row
// itself is reconstructed entirely from user state events.
type UserCalendar struct {
	ID         uuid.UUID
	CalendarID uuid.UUID
	UserID     uuid.UUID
}

// GetUserCalendar resolves the association a meeting operation runs under.
func (db *DB) GetUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) (*UserCalendar, error) {
	uc := &UserCalendar{}
	err := db.QueryRowContext(ctx, `
		SELECT id, calendar_id, user_id FROM user_calendars
		WHERE calendar_id = $1 AND user_id = $2
	`, calendarID, userID).Scan(&uc.ID, &uc.CalendarID, &uc.UserID)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("calendar %s for user %s", calendarID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query user calendar: %w", err)
	}
	return uc, nil
}

func (db *DB) ListUserCalendarsByUser(ctx context.Context, userID uuid.UUID) ([]UserCalendar, error) {
	return db.listUserCalendars(ctx, `
		SELECT id, calendar_id, user_id FROM user_calendars WHERE user_id = $1
	`, userID)
}

// ListUserCalendarsByCalendar returns every association referencing one
// external calendar; a shared calendar yields one row per user.
func (db *DB) ListUserCalendarsByCalendar(ctx context.Context, calendarID uuid.UUID) ([]UserCalendar, error) {
	return db.listUserCalendars(ctx, `
		SELECT id, calendar_id, user_id FROM user_calendars WHERE calendar_id = $1
	`, calendarID)
}

func (db *DB) listUserCalendars(ctx context.Context, query string, arg any) ([]UserCalendar, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query user calendars: %w", err)
	}
	defer rows.Close()

	var out []UserCalendar
	for rows.Next() {
		var uc UserCalendar
		if err := rows.Scan(&uc.ID, &uc.CalendarID, &uc.UserID); err != nil {
			return nil, fmt.Errorf("scan user calendar: %w", err)
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// UpsertUserCalendar inserts the association if missing; reprocessed events
// hit the unique constraint and are a no-op.
func (db *DB) UpsertUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_calendars (id, calendar_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (calendar_id, user_id) DO NOTHING
	`, uuid.New(), calendarID, userID)
	if err != nil {
		return fmt.Errorf("upsert user calendar: %w", err)
	}
	return nil
}

// DeleteUserCalendar removes one association; its meetings cascade.
func (db *DB) DeleteUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM user_calendars WHERE calendar_id = $1 AND user_id = $2
	`, calendarID, userID)
	if err != nil {
		return fmt.Errorf("delete user calendar: %w", err)
	}
	return nil
}

// DeleteUserCalendarsByUser clears the projection for a deleted user.
func (db *DB) DeleteUserCalendarsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM user_calendars WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("delete user calendars: %w", err)
	}
	return nil
}
