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

// User is the canonical user record. CalendarIDs is the source of truth for
// the user's calendar associations; other services derive their own
// projection of it from published state events.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	CalendarIDs []uuid.UUID
	Version     int64
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u := &User{}
	var calendarIDs pq.StringArray
	err := db.QueryRowContext(ctx, `
		SELECT id, name, email, calendar_ids, version
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &calendarIDs, &u.Version)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("user %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if u.CalendarIDs, err = parseUUIDs(calendarIDs); err != nil {
		return nil, fmt.Errorf("user %s calendar ids: %w", id, err)
	}
	return u, nil
}

func (db *DB) ListUsers(ctx context.Context, offset, limit int) ([]User, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, email, calendar_ids, version
		FROM users ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var calendarIDs pq.StringArray
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &calendarIDs, &u.Version); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		if u.CalendarIDs, err = parseUUIDs(calendarIDs); err != nil {
			return nil, 0, fmt.Errorf("user %s calendar ids: %w", u.ID, err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// CreateUser inserts a new user at version 1.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	u.Version = 1
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, calendar_ids, version)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Name, u.Email, pq.Array(formatUUIDs(u.CalendarIDs)), u.Version)
	if isUniqueViolation(err) {
		return domain.Conflictf("a user with email %q already exists", u.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateUser persists u with a compare-and-swap on u.Version. Zero rows
// touched means another writer got there first; the caller's guard retries.
// On success u.Version holds the incremented version.
func (db *DB) UpdateUser(ctx context.Context, u *User) error {
	err := db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, calendar_ids = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`, u.Name, u.Email, pq.Array(formatUUIDs(u.CalendarIDs)), u.ID, u.Version).Scan(&u.Version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update user %s: %w", u.ID, domain.ErrWriteConflict)
	}
	if isUniqueViolation(err) {
		return domain.Conflictf("a user with email %q already exists", u.Email)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// DeleteUser removes the row the caller loaded; a version mismatch reports a
// write conflict so the delete can be retried against fresh state.
func (db *DB) DeleteUser(ctx context.Context, id uuid.UUID, version int64) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM users WHERE id = $1 AND version = $2
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete user %s: %w", id, domain.ErrWriteConflict)
	}
	return nil
}

func formatUUIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
