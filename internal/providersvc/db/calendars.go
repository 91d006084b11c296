package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"meetsync/internal/domain"
)

// Calendar is a provider-side calendar that owns zero or more events.
type Calendar struct {
	ID          uuid.UUID
	Name        string
	Description string
	Version     int64
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (db *DB) GetCalendar(ctx context.Context, id uuid.UUID) (*Calendar, error) {
	c := &Calendar{}
	err := db.QueryRowContext(ctx, `
		SELECT id, name, description, version
		FROM calendars WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.Version)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("calendar %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	return c, nil
}

func (db *DB) ListCalendars(ctx context.Context, offset, limit int) ([]Calendar, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calendars`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count calendars: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, version
		FROM calendars ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query calendars: %w", err)
	}
	defer rows.Close()

	var calendars []Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Version); err != nil {
			return nil, 0, fmt.Errorf("scan calendar: %w", err)
		}
		calendars = append(calendars, c)
	}
	return calendars, total, rows.Err()
}

func (db *DB) CreateCalendar(ctx context.Context, c *Calendar) error {
	c.Version = 1
	_, err := db.ExecContext(ctx, `
		INSERT INTO calendars (id, name, description, version)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Description, c.Version)
	if isUniqueViolation(err) {
		return domain.Conflictf("a calendar named %q already exists", c.Name)
	}
	if err != nil {
		return fmt.Errorf("insert calendar: %w", err)
	}
	return nil
}

// UpdateCalendar persists c with a compare-and-swap on c.Version.
func (db *DB) UpdateCalendar(ctx context.Context, c *Calendar) error {
	err := db.QueryRowContext(ctx, `
		UPDATE calendars
		SET name = $1, description = $2, version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`, c.Name, c.Description, c.ID, c.Version).Scan(&c.Version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update calendar %s: %w", c.ID, domain.ErrWriteConflict)
	}
	if isUniqueViolation(err) {
		return domain.Conflictf("a calendar named %q already exists", c.Name)
	}
	if err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	return nil
}

// DeleteCalendar removes the calendar; its events go with it via
// ON DELETE CASCADE.
func (db *DB) DeleteCalendar(ctx context.Context, id uuid.UUID, version int64) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM calendars WHERE id = $1 AND version = $2
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete calendar %s: %w", id, domain.ErrWriteConflict)
	}
	return nil
}
