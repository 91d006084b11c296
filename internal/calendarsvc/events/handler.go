// Package events reconciles the calendar service's user-calendar projection
// against user-state events. Handlers are idempotent: replaying an event, or
// receiving a redelivery, converges to the same projection.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"meetsync/internal/calendarsvc/db"
	"meetsync/internal/events"
)

// ProjectionStore is the slice of the calendar store the reconciler writes.
// *db.DB satisfies it.
type ProjectionStore interface {
	ListUserCalendarsByUser(ctx context.Context, userID uuid.UUID) ([]db.UserCalendar, error)
	UpsertUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) error
	DeleteUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) error
	DeleteUserCalendarsByUser(ctx context.Context, userID uuid.UUID) error
}

// Handler applies user-state events to the projection. It implements
// events.UserStateHandler.
type Handler struct {
	store ProjectionStore
}

func NewHandler(store ProjectionStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) OnUserState(ctx context.Context, state events.UserState) error {
	userID, err := uuid.Parse(state.ID)
	if err != nil {
		return fmt.Errorf("parsing user id %q: %w", state.ID, err)
	}
	calendarIDs, err := parseCalendarIDs(state.CalendarIDs)
	if err != nil {
		return err
	}

	switch state.EventType {
	case events.EventCreated, events.EventUpdated:
		err = h.reconcile(ctx, userID, calendarIDs)
	case events.EventDeleted:
		err = h.store.DeleteUserCalendarsByUser(ctx, userID)
	case events.EventCalendarAdded:
		err = h.addCalendars(ctx, userID, calendarIDs)
	case events.EventCalendarRemoved:
		err = h.removeCalendars(ctx, userID, calendarIDs)
	default:
		slog.Warn("skipping user state event of unknown type", "event_type", state.EventType, "user_id", state.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying %s for user %s: %w", state.EventType, state.ID, err)
	}

	slog.Info("user state applied", "event_type", state.EventType, "user_id", state.ID, "calendars", len(calendarIDs))
	return nil
}

// reconcile diffs the stored associations against the event's full calendar
// set: missing ones are inserted, extra ones removed.
func (h *Handler) reconcile(ctx context.Context, userID uuid.UUID, calendarIDs []uuid.UUID) error {
	current, err := h.store.ListUserCalendarsByUser(ctx, userID)
	if err != nil {
		return err
	}

	desired := make(map[uuid.UUID]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		desired[id] = true
	}

	stored := make(map[uuid.UUID]bool, len(current))
	for _, uc := range current {
		stored[uc.CalendarID] = true
		if !desired[uc.CalendarID] {
			if err := h.store.DeleteUserCalendar(ctx, uc.CalendarID, userID); err != nil {
				return err
			}
		}
	}
	for _, id := range calendarIDs {
		if !stored[id] {
			if err := h.store.UpsertUserCalendar(ctx, id, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// addCalendars inserts the event's calendars. An empty set is a no-op; the
// upsert makes redeliveries harmless.
func (h *Handler) addCalendars(ctx context.Context, userID uuid.UUID, calendarIDs []uuid.UUID) error {
	for _, id := range calendarIDs {
		if err := h.store.UpsertUserCalendar(ctx, id, userID); err != nil {
			return err
		}
	}
	return nil
}

// removeCalendars keeps only the associations still present in the event's
// calendar set. An empty set therefore removes every association, matching
// the snapshot published when the last calendar is detached.
func (h *Handler) removeCalendars(ctx context.Context, userID uuid.UUID, calendarIDs []uuid.UUID) error {
	remaining := make(map[uuid.UUID]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		remaining[id] = true
	}

	current, err := h.store.ListUserCalendarsByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, uc := range current {
		if !remaining[uc.CalendarID] {
			if err := h.store.DeleteUserCalendar(ctx, uc.CalendarID, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseCalendarIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing calendar id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}
