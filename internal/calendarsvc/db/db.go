package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func Open(connStr string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		// user_calendars is a projection rebuilt from user state events; it
		// is never written by request handlers.
		`CREATE TABLE IF NOT EXISTS user_calendars (
			id UUID PRIMARY KEY,
			calendar_id UUID NOT NULL,
			user_id UUID NOT NULL,
			UNIQUE (calendar_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_calendars_user ON user_calendars (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_calendars_calendar ON user_calendars (calendar_id)`,
		`CREATE TABLE IF NOT EXISTS meetings (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			user_calendar_id UUID NOT NULL REFERENCES user_calendars(id) ON DELETE CASCADE,
			calendar_id UUID NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_calendar_window
			ON meetings (calendar_id, start_time, end_time)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
