// Package providersvc implements the provider service domain: calendar and
// event CRUD, and the time-range lookup other services use as their external
// busy-interval source.
package providersvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/domain"
	"meetsync/internal/occ"
	"meetsync/internal/providersvc/db"
	"meetsync/internal/timeslot"
)

// Store is the persistence surface the service needs. *db.DB satisfies it.
type Store interface {
	GetCalendar(ctx context.Context, id uuid.UUID) (*db.Calendar, error)
	ListCalendars(ctx context.Context, offset, limit int) ([]db.Calendar, int, error)
	CreateCalendar(ctx context.Context, c *db.Calendar) error
	UpdateCalendar(ctx context.Context, c *db.Calendar) error
	DeleteCalendar(ctx context.Context, id uuid.UUID, version int64) error

	GetEvent(ctx context.Context, id uuid.UUID) (*db.Event, error)
	ListEventsByCalendar(ctx context.Context, calendarID uuid.UUID) ([]db.Event, error)
	ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]db.Event, error)
	CreateEvent(ctx context.Context, e *db.Event) error
	UpdateEvent(ctx context.Context, e *db.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID, version int64) error
}

type Service struct {
	store Store
	guard occ.Guard
}

func New(store Store) *Service {
	return &Service{store: store, guard: occ.Default()}
}

// CalendarInput carries caller-supplied calendar fields.
type CalendarInput struct {
	Name        string
	Description string
	Version     *int64
}

// EventInput carries caller-supplied event fields.
type EventInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	CalendarID  uuid.UUID
	Version     *int64
}

func (in EventInput) validate() error {
	if in.Title == "" {
		return domain.Validationf("title is required")
	}
	return timeslot.ValidateMeetingTime(in.StartTime, in.EndTime)
}

func (s *Service) GetCalendar(ctx context.Context, id uuid.UUID) (*db.Calendar, error) {
	return s.store.GetCalendar(ctx, id)
}

func (s *Service) ListCalendars(ctx context.Context, page, size int) ([]db.Calendar, int, error) {
	return s.store.ListCalendars(ctx, page*size, size)
}

func (s *Service) CreateCalendar(ctx context.Context, in CalendarInput) (*db.Calendar, error) {
	if in.Name == "" {
		return nil, domain.Validationf("name is required")
	}

	calendar := &db.Calendar{ID: uuid.New(), Name: in.Name, Description: in.Description}
	if err := s.store.CreateCalendar(ctx, calendar); err != nil {
		return nil, err
	}
	slog.Info("calendar created", "calendar_id", calendar.ID)
	return calendar, nil
}

func (s *Service) UpdateCalendar(ctx context.Context, id uuid.UUID, in CalendarInput) (*db.Calendar, error) {
	if in.Name == "" {
		return nil, domain.Validationf("name is required")
	}

	var updated *db.Calendar
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		calendar, err := s.store.GetCalendar(ctx, id)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != calendar.Version {
			return domain.Conflictf("calendar %s was modified by another operation (version %d, expected %d)", id, calendar.Version, *in.Version)
		}

		calendar.Name = in.Name
		calendar.Description = in.Description
		if err := s.store.UpdateCalendar(ctx, calendar); err != nil {
			return err
		}
		updated = calendar
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("calendar updated", "calendar_id", id, "version", updated.Version)
	return updated, nil
}

// DeleteCalendar removes the calendar and, through the store's cascade,
// every event it owns.
func (s *Service) DeleteCalendar(ctx context.Context, id uuid.UUID) error {
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		calendar, err := s.store.GetCalendar(ctx, id)
		if err != nil {
			return err
		}
		return s.store.DeleteCalendar(ctx, id, calendar.Version)
	})
	if err != nil {
		return err
	}
	slog.Info("calendar deleted", "calendar_id", id)
	return nil
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*db.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Service) ListEventsByCalendar(ctx context.Context, calendarID uuid.UUID) ([]db.Event, error) {
	if _, err := s.store.GetCalendar(ctx, calendarID); err != nil {
		return nil, err
	}
	return s.store.ListEventsByCalendar(ctx, calendarID)
}

// ListEventsInWindow serves the remote busy-interval contract: events on the
// calendar overlapping [from, to).
func (s *Service) ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]db.Event, error) {
	if _, err := s.store.GetCalendar(ctx, calendarID); err != nil {
		return nil, err
	}
	if err := timeslot.ValidateRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListEventsInWindow(ctx, calendarID, from, to)
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*db.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCalendar(ctx, in.CalendarID); err != nil {
		return nil, err
	}

	event := &db.Event{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Location:    in.Location,
		CalendarID:  in.CalendarID,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	slog.Info("event created", "event_id", event.ID, "calendar_id", event.CalendarID)
	return event, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*db.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *db.Event
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		event, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != event.Version {
			return domain.Conflictf("event %s was modified by another operation (version %d, expected %d)", id, event.Version, *in.Version)
		}
		if in.CalendarID != event.CalendarID {
			if _, err := s.store.GetCalendar(ctx, in.CalendarID); err != nil {
				return err
			}
		}

		event.Title = in.Title
		event.Description = in.Description
		event.StartTime = in.StartTime
		event.EndTime = in.EndTime
		event.Location = in.Location
		event.CalendarID = in.CalendarID
		if err := s.store.UpdateEvent(ctx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("event updated", "event_id", id, "version", updated.Version)
	return updated, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		event, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		return s.store.DeleteEvent(ctx, id, event.Version)
	})
	if err != nil {
		return err
	}
	slog.Info("event deleted", "event_id", id)
	return nil
}
