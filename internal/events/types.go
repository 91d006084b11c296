package events

// User state events are JSON-serialized. Every event carries the full
// current snapshot of the user's calendar set, so consumers reconcile by
// diffing rather than applying deltas.

// EventType identifies what changed on the user record.
type EventType string

const (
	EventCreated         EventType = "CREATED"
	EventUpdated         EventType = "UPDATED"
	EventDeleted         EventType = "DELETED"
	EventCalendarAdded   EventType = "CALENDAR_ADDED"
	EventCalendarRemoved EventType = "CALENDAR_REMOVED"
)

// UserState is the published snapshot of a user after a successful mutation.
type UserState struct {
	EventID     string    `json:"eventId"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CalendarIDs []string  `json:"calendarIds"`
	EventType   EventType `json:"eventType"`
	Timestamp   int64     `json:"timestamp"`
}
