package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/domain"
)

// Meeting is a calendar-service booking tied to one user-calendar
// association. CalendarID duplicates the association's external calendar id
// so window queries don't need a join.
type Meeting struct {
	ID             uuid.UUID
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	Location       string
	UserCalendarID uuid.UUID
	CalendarID     uuid.UUID
	Version        int64
}

const meetingColumns = `id, title, description, start_time, end_time, location, user_calendar_id, calendar_id, version`

func (db *DB) GetMeeting(ctx context.Context, userCalendarID, meetingID uuid.UUID) (*Meeting, error) {
	m := &Meeting{}
	err := db.QueryRowContext(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE id = $1 AND user_calendar_id = $2
	`, meetingID, userCalendarID).Scan(&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime, &m.Location, &m.UserCalendarID, &m.CalendarID, &m.Version)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("meeting %s", meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	return m, nil
}

// ListMeetingsInRange returns meetings contained in [from, to] for one
// association, ordered by start time, with skip/limit applied in the query.
func (db *DB) ListMeetingsInRange(ctx context.Context, userCalendarID uuid.UUID, from, to time.Time, offset, limit int) ([]Meeting, int, error) {
	var total int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM meetings
		WHERE user_calendar_id = $1 AND start_time >= $2 AND end_time <= $3
	`, userCalendarID, from, to).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count meetings: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE user_calendar_id = $1 AND start_time >= $2 AND end_time <= $3
		ORDER BY start_time, id
		OFFSET $4 LIMIT $5
	`, userCalendarID, from, to, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	meetings, err := collectMeetings(rows)
	return meetings, total, err
}

// ListOverlappingMeetings returns meetings on one association overlapping
// [from, to): start < to AND end > from.
func (db *DB) ListOverlappingMeetings(ctx context.Context, userCalendarID uuid.UUID, from, to time.Time) ([]Meeting, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE user_calendar_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id
	`, userCalendarID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query overlapping meetings: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

func collectMeetings(rows *sql.Rows) ([]Meeting, error) {
	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime, &m.Location, &m.UserCalendarID, &m.CalendarID, &m.Version); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func (db *DB) CreateMeeting(ctx context.Context, m *Meeting) error {
	m.Version = 1
	_, err := db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, description, start_time, end_time, location, user_calendar_id, calendar_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.Title, m.Description, m.StartTime, m.EndTime, m.Location, m.UserCalendarID, m.CalendarID, m.Version)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// UpdateMeeting persists m with a compare-and-swap on m.Version.
func (db *DB) UpdateMeeting(ctx context.Context, m *Meeting) error {
	err := db.QueryRowContext(ctx, `
		UPDATE meetings
		SET title = $1, description = $2, start_time = $3, end_time = $4, location = $5, version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`, m.Title, m.Description, m.StartTime, m.EndTime, m.Location, m.ID, m.Version).Scan(&m.Version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update meeting %s: %w", m.ID, domain.ErrWriteConflict)
	}
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	return nil
}

func (db *DB) DeleteMeeting(ctx context.Context, id uuid.UUID, version int64) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM meetings WHERE id = $1 AND version = $2
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete meeting %s: %w", id, domain.ErrWriteConflict)
	}
	return nil
}
