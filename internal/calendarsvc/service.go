// Package calendarsvc implements the calendar service domain: meeting CRUD
// under optimistic concurrency, and the availability engine that reconciles
// internally stored meetings with externally fetched busy intervals.
package calendarsvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/calendarsvc/db"
	"meetsync/internal/domain"
	"meetsync/internal/occ"
	"meetsync/internal/timeslot"
)

// Store is the persistence surface the service needs. *db.DB satisfies it.
type Store interface {
	GetUserCalendar(ctx context.Context, calendarID, userID uuid.UUID) (*db.UserCalendar, error)
	ListUserCalendarsByCalendar(ctx context.Context, calendarID uuid.UUID) ([]db.UserCalendar, error)

	GetMeeting(ctx context.Context, userCalendarID, meetingID uuid.UUID) (*db.Meeting, error)
	ListMeetingsInRange(ctx context.Context, userCalendarID uuid.UUID, from, to time.Time, offset, limit int) ([]db.Meeting, int, error)
	ListOverlappingMeetings(ctx context.Context, userCalendarID uuid.UUID, from, to time.Time) ([]db.Meeting, error)
	CreateMeeting(ctx context.Context, m *db.Meeting) error
	UpdateMeeting(ctx context.Context, m *db.Meeting) error
	DeleteMeeting(ctx context.Context, id uuid.UUID, version int64) error
}

// BusySource supplies external busy intervals for a calendar. Lookups absorb
// their own failures and return an empty list, so availability degrades
// rather than erroring.
type BusySource interface {
	BusyIntervals(ctx context.Context, calendarID uuid.UUID, from, to time.Time) []timeslot.Interval
}

type Service struct {
	store Store
	busy  BusySource
	guard occ.Guard
}

func New(store Store, busy BusySource) *Service {
	return &Service{store: store, busy: busy, guard: occ.Default()}
}

// MeetingInput carries caller-supplied meeting fields.
type MeetingInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	CalendarID  uuid.UUID
	Version     *int64
}

func (in MeetingInput) validate() error {
	if in.Title == "" {
		return domain.Validationf("title is required")
	}
	return timeslot.ValidateMeetingTime(in.StartTime, in.EndTime)
}

// FindMeetings lists the user's meetings contained in [from, to] on one
// calendar, paginated.
func (s *Service) FindMeetings(ctx context.Context, userID, calendarID uuid.UUID, from, to time.Time, page, size int) ([]db.Meeting, int, error) {
	uc, err := s.store.GetUserCalendar(ctx, calendarID, userID)
	if err != nil {
		return nil, 0, err
	}
	if err := timeslot.ValidateRange(from, to); err != nil {
		return nil, 0, err
	}
	return s.store.ListMeetingsInRange(ctx, uc.ID, from, to, page*size, size)
}

// FindAvailableSlots computes open d-length slots in [from, to) on one
// calendar. Busy intervals come from every association sharing the calendar
// plus the external provider; pagination happens over the materialized list.
func (s *Service) FindAvailableSlots(ctx context.Context, userID, calendarID uuid.UUID, from, to time.Time, d time.Duration, page, size int) ([]timeslot.Slot, int, error) {
	if _, err := s.store.GetUserCalendar(ctx, calendarID, userID); err != nil {
		return nil, 0, err
	}
	if err := timeslot.ValidateRange(from, to); err != nil {
		return nil, 0, err
	}
	if err := timeslot.ValidateSlotDuration(d); err != nil {
		return nil, 0, err
	}

	busy, err := s.internalBusyIntervals(ctx, calendarID, from, to, nil)
	if err != nil {
		return nil, 0, err
	}
	busy = append(busy, s.busy.BusyIntervals(ctx, calendarID, from, to)...)

	slots := timeslot.FindAvailable(from, to, d, busy)
	pageSlots, total := timeslot.Page(slots, page, size)
	return pageSlots, total, nil
}

func (s *Service) GetMeeting(ctx context.Context, userID, calendarID, meetingID uuid.UUID) (*db.Meeting, error) {
	uc, err := s.store.GetUserCalendar(ctx, calendarID, userID)
	if err != nil {
		return nil, err
	}
	return s.store.GetMeeting(ctx, uc.ID, meetingID)
}

func (s *Service) CreateMeeting(ctx context.Context, userID uuid.UUID, in MeetingInput) (*db.Meeting, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	uc, err := s.store.GetUserCalendar(ctx, in.CalendarID, userID)
	if err != nil {
		return nil, err
	}

	var created *db.Meeting
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		if err := s.checkForConflicts(ctx, in.CalendarID, in.StartTime, in.EndTime, uuid.Nil); err != nil {
			return err
		}

		meeting := &db.Meeting{
			ID:             uuid.New(),
			Title:          in.Title,
			Description:    in.Description,
			StartTime:      in.StartTime,
			EndTime:        in.EndTime,
			Location:       in.Location,
			UserCalendarID: uc.ID,
			CalendarID:     in.CalendarID,
		}
		if err := s.store.CreateMeeting(ctx, meeting); err != nil {
			return err
		}
		created = meeting
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("meeting created", "meeting_id", created.ID, "calendar_id", created.CalendarID)
	return created, nil
}

func (s *Service) UpdateMeeting(ctx context.Context, userID, meetingID uuid.UUID, in MeetingInput) (*db.Meeting, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	uc, err := s.store.GetUserCalendar(ctx, in.CalendarID, userID)
	if err != nil {
		return nil, err
	}

	var updated *db.Meeting
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		meeting, err := s.store.GetMeeting(ctx, uc.ID, meetingID)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != meeting.Version {
			return domain.Conflictf("meeting %s was modified by another operation (version %d, expected %d)", meetingID, meeting.Version, *in.Version)
		}
		if err := s.checkForConflicts(ctx, in.CalendarID, in.StartTime, in.EndTime, meetingID); err != nil {
			return err
		}

		meeting.Title = in.Title
		meeting.Description = in.Description
		meeting.StartTime = in.StartTime
		meeting.EndTime = in.EndTime
		meeting.Location = in.Location
		if err := s.store.UpdateMeeting(ctx, meeting); err != nil {
			return err
		}
		updated = meeting
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("meeting updated", "meeting_id", meetingID, "version", updated.Version)
	return updated, nil
}

func (s *Service) DeleteMeeting(ctx context.Context, userID, calendarID, meetingID uuid.UUID) error {
	uc, err := s.store.GetUserCalendar(ctx, calendarID, userID)
	if err != nil {
		return err
	}

	err = s.guard.Do(ctx, func(ctx context.Context) error {
		meeting, err := s.store.GetMeeting(ctx, uc.ID, meetingID)
		if err != nil {
			return err
		}
		return s.store.DeleteMeeting(ctx, meetingID, meeting.Version)
	})
	if err != nil {
		return err
	}

	slog.Info("meeting deleted", "meeting_id", meetingID)
	return nil
}

// internalBusyIntervals collects overlapping meetings from every association
// sharing the calendar (a calendar can be attached to multiple users), minus
// the meeting being updated.
func (s *Service) internalBusyIntervals(ctx context.Context, calendarID uuid.UUID, from, to time.Time, meetings *[]db.Meeting) ([]timeslot.Interval, error) {
	associations, err := s.store.ListUserCalendarsByCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if len(associations) == 0 {
		return nil, domain.NotFoundf("calendar %s", calendarID)
	}

	var busy []timeslot.Interval
	for _, uc := range associations {
		overlapping, err := s.store.ListOverlappingMeetings(ctx, uc.ID, from, to)
		if err != nil {
			return nil, err
		}
		for _, m := range overlapping {
			busy = append(busy, timeslot.Interval{Start: m.StartTime, End: m.EndTime})
			if meetings != nil {
				*meetings = append(*meetings, m)
			}
		}
	}
	return busy, nil
}

// checkForConflicts fails with Conflict when [start, end) overlaps any
// meeting on any association sharing the calendar (excluding the meeting
// being updated) or any external provider event.
func (s *Service) checkForConflicts(ctx context.Context, calendarID uuid.UUID, start, end time.Time, exclude uuid.UUID) error {
	var meetings []db.Meeting
	if _, err := s.internalBusyIntervals(ctx, calendarID, start, end, &meetings); err != nil {
		return err
	}
	for _, m := range meetings {
		if m.ID != exclude {
			return domain.Conflictf("the meeting overlaps meeting %s [%s, %s)", m.ID,
				m.StartTime.Format(time.RFC3339), m.EndTime.Format(time.RFC3339))
		}
	}

	requested := timeslot.Interval{Start: start, End: end}
	for _, iv := range s.busy.BusyIntervals(ctx, calendarID, start, end) {
		if requested.Overlaps(iv) {
			return domain.Conflictf("the meeting overlaps an external event [%s, %s)",
				iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
		}
	}
	return nil
}
