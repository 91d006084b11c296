// Package usersvc implements the user service domain: user CRUD,
// calendar attach/detach, and publication of user state events after every
// committed mutation.
package usersvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/domain"
	"meetsync/internal/events"
	"meetsync/internal/occ"
	"meetsync/internal/usersvc/db"
)

// MaxCalendarsPerUser bounds the calendar-id set on a single user.
const MaxCalendarsPerUser = 10

// Store is the persistence surface the service needs. *db.DB satisfies it.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]db.User, int, error)
	CreateUser(ctx context.Context, u *db.User) error
	UpdateUser(ctx context.Context, u *db.User) error
	DeleteUser(ctx context.Context, id uuid.UUID, version int64) error
}

// StatePublisher delivers user state snapshots to the event log. A nil
// publisher disables publication, which lets the service run without NATS
// in development.
type StatePublisher interface {
	PublishUserState(state events.UserState) error
}

type Service struct {
	store     Store
	publisher StatePublisher
	guard     occ.Guard
}

func New(store Store, publisher StatePublisher) *Service {
	return &Service{store: store, publisher: publisher, guard: occ.Default()}
}

// UserInput carries caller-supplied fields for create and update. Version is
// checked against the stored row on update when supplied.
type UserInput struct {
	Name        string
	Email       string
	CalendarIDs []uuid.UUID
	Version     *int64
}

func (in UserInput) validate() error {
	if in.Name == "" {
		return domain.Validationf("name is required")
	}
	if in.Email == "" {
		return domain.Validationf("email is required")
	}
	if len(in.CalendarIDs) > MaxCalendarsPerUser {
		return domain.Validationf("maximum of %d calendars per user", MaxCalendarsPerUser)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*db.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, page, size int) ([]db.User, int, error) {
	return s.store.ListUsers(ctx, page*size, size)
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (*db.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	user := &db.User{
		ID:          uuid.New(),
		Name:        in.Name,
		Email:       in.Email,
		CalendarIDs: append([]uuid.UUID(nil), in.CalendarIDs...),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user created", "user_id", user.ID)
	s.publish(user, events.EventCreated)
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UserInput) (*db.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *db.User
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != user.Version {
			return domain.Conflictf("user %s was modified by another operation (version %d, expected %d)", id, user.Version, *in.Version)
		}

		user.Name = in.Name
		user.Email = in.Email
		user.CalendarIDs = append([]uuid.UUID(nil), in.CalendarIDs...)
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user updated", "user_id", id, "version", updated.Version)
	s.publish(updated, events.EventUpdated)
	return updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	var deleted *db.User
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteUser(ctx, id, user.Version); err != nil {
			return err
		}
		deleted = user
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user deleted", "user_id", id)
	s.publish(deleted, events.EventDeleted)
	return nil
}

// AddCalendar attaches a calendar id to the user's set.
func (s *Service) AddCalendar(ctx context.Context, userID, calendarID uuid.UUID) (*db.User, error) {
	var updated *db.User
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if containsID(user.CalendarIDs, calendarID) {
			return domain.Conflictf("calendar %s is already associated with user %s", calendarID, userID)
		}
		if len(user.CalendarIDs) >= MaxCalendarsPerUser {
			return domain.Conflictf("user %s has reached the maximum of %d calendars", userID, MaxCalendarsPerUser)
		}

		user.CalendarIDs = append(user.CalendarIDs, calendarID)
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("calendar added", "user_id", userID, "calendar_id", calendarID)
	s.publish(updated, events.EventCalendarAdded)
	return updated, nil
}

// RemoveCalendar detaches a calendar id from the user's set.
func (s *Service) RemoveCalendar(ctx context.Context, userID, calendarID uuid.UUID) (*db.User, error) {
	var updated *db.User
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !containsID(user.CalendarIDs, calendarID) {
			return domain.NotFoundf("calendar %s for user %s", calendarID, userID)
		}

		kept := user.CalendarIDs[:0]
		for _, id := range user.CalendarIDs {
			if id != calendarID {
				kept = append(kept, id)
			}
		}
		user.CalendarIDs = kept
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("calendar removed", "user_id", userID, "calendar_id", calendarID)
	s.publish(updated, events.EventCalendarRemoved)
	return updated, nil
}

// publish emits the user's current state after a committed mutation. Publish
// failures are logged and swallowed: the local write already succeeded and is
// never rolled back for a delivery problem.
func (s *Service) publish(user *db.User, kind events.EventType) {
	if s.publisher == nil {
		return
	}
	calendarIDs := make([]string, len(user.CalendarIDs))
	for i, id := range user.CalendarIDs {
		calendarIDs[i] = id.String()
	}
	state := events.UserState{
		ID:          user.ID.String(),
		Name:        user.Name,
		Email:       user.Email,
		CalendarIDs: calendarIDs,
		EventType:   kind,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishUserState(state); err != nil {
		slog.Error("failed to publish user state", "error", err, "user_id", user.ID, "event_type", kind)
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
