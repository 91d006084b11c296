package providersvc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/domain"
	"meetsync/internal/occ"
	"meetsync/internal/providersvc/db"
)

type fakeStore struct {
	calendars map[uuid.UUID]*db.Calendar
	events    map[uuid.UUID]*db.Event

	failEventUpdates int
	eventUpdateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calendars: map[uuid.UUID]*db.Calendar{},
		events:    map[uuid.UUID]*db.Event{},
	}
}

func (f *fakeStore) GetCalendar(_ context.Context, id uuid.UUID) (*db.Calendar, error) {
	c, ok := f.calendars[id]
	if !ok {
		return nil, domain.NotFoundf("calendar %s", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListCalendars(_ context.Context, offset, limit int) ([]db.Calendar, int, error) {
	var all []db.Calendar
	for _, c := range f.calendars {
		all = append(all, *c)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeStore) CreateCalendar(_ context.Context, c *db.Calendar) error {
	for _, existing := range f.calendars {
		if existing.Name == c.Name {
			return domain.Conflictf("calendar name %q is already in use", c.Name)
		}
	}
	c.Version = 1
	stored := *c
	f.calendars[c.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateCalendar(_ context.Context, c *db.Calendar) error {
	current, ok := f.calendars[c.ID]
	if !ok || current.Version != c.Version {
		return domain.ErrWriteConflict
	}
	c.Version++
	stored := *c
	f.calendars[c.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteCalendar(_ context.Context, id uuid.UUID, version int64) error {
	current, ok := f.calendars[id]
	if !ok || current.Version != version {
		return domain.ErrWriteConflict
	}
	delete(f.calendars, id)
	for eventID, e := range f.events {
		if e.CalendarID == id {
			delete(f.events, eventID)
		}
	}
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*db.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, domain.NotFoundf("event %s", id)
	}
	out := *e
	return &out, nil
}

func (f *fakeStore) ListEventsByCalendar(_ context.Context, calendarID uuid.UUID) ([]db.Event, error) {
	var out []db.Event
	for _, e := range f.events {
		if e.CalendarID == calendarID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEventsInWindow(_ context.Context, calendarID uuid.UUID, from, to time.Time) ([]db.Event, error) {
	var out []db.Event
	for _, e := range f.events {
		if e.CalendarID == calendarID && e.StartTime.Before(to) && e.EndTime.After(from) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, e *db.Event) error {
	e.Version = 1
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, e *db.Event) error {
	f.eventUpdateCalls++
	if f.failEventUpdates > 0 {
		f.failEventUpdates--
		return domain.ErrWriteConflict
	}
	current, ok := f.events[e.ID]
	if !ok || current.Version != e.Version {
		return domain.ErrWriteConflict
	}
	e.Version++
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id uuid.UUID, version int64) error {
	current, ok := f.events[id]
	if !ok || current.Version != version {
		return domain.ErrWriteConflict
	}
	delete(f.events, id)
	return nil
}

func newTestService(store *fakeStore) *Service {
	s := New(store)
	s.guard = occ.Guard{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	return s
}

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func seedCalendar(t *testing.T, s *Service) *db.Calendar {
	t.Helper()
	c, err := s.CreateCalendar(context.Background(), CalendarInput{Name: "team"})
	require.NoError(t, err)
	return c
}

func eventInput(calendarID uuid.UUID, start, end time.Time) EventInput {
	return EventInput{Title: "review", StartTime: start, EndTime: end, CalendarID: calendarID}
}

func TestCreateCalendarDuplicateName(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	_, err := s.CreateCalendar(context.Background(), CalendarInput{Name: "team"})
	require.NoError(t, err)

	_, err = s.CreateCalendar(context.Background(), CalendarInput{Name: "team"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateCalendarStaleVersion(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	stale := c.Version - 1
	_, err := s.UpdateCalendar(context.Background(), c.ID, CalendarInput{Name: "renamed", Version: &stale})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestDeleteCalendarCascadesEvents(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	_, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	require.NoError(t, s.DeleteCalendar(context.Background(), c.ID))
	assert.Empty(t, store.events)
}

func TestCreateEventValidatesTime(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	// End before start.
	_, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(11, 0), at(10, 0)))
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Longer than eight hours.
	_, err = s.CreateEvent(context.Background(), eventInput(c.ID, at(9, 0), at(18, 0)))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateEventMissingCalendar(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	_, err := s.CreateEvent(context.Background(), eventInput(uuid.New(), at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateEventRetriesWriteConflict(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	e, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	store.failEventUpdates = 2
	updated, err := s.UpdateEvent(context.Background(), e.ID, eventInput(c.ID, at(12, 0), at(13, 0)))
	require.NoError(t, err)
	assert.Equal(t, 3, store.eventUpdateCalls)
	assert.Equal(t, int64(2), updated.Version)
}

func TestUpdateEventExhaustsRetries(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	e, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	store.failEventUpdates = 3
	_, err = s.UpdateEvent(context.Background(), e.ID, eventInput(c.ID, at(12, 0), at(13, 0)))
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestUpdateEventMovingToMissingCalendar(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	e, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	_, err = s.UpdateEvent(context.Background(), e.ID, eventInput(uuid.New(), at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListEventsInWindow(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	_, err := s.CreateEvent(context.Background(), eventInput(c.ID, at(10, 0), at(11, 0)))
	require.NoError(t, err)
	_, err = s.CreateEvent(context.Background(), eventInput(c.ID, at(14, 0), at(15, 0)))
	require.NoError(t, err)

	events, err := s.ListEventsInWindow(context.Background(), c.ID, at(9, 0), at(12, 0))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestListEventsInWindowValidatesRange(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)
	c := seedCalendar(t, s)

	from := at(9, 0)
	_, err := s.ListEventsInWindow(context.Background(), c.ID, from, from.Add(8*24*time.Hour))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
