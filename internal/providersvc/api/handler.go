package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/httpapi"
	"meetsync/internal/providersvc"
	"meetsync/internal/providersvc/db"
)

type Handler struct {
	service *providersvc.Service
}

func NewHandler(service *providersvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/calendars", h.handleListCalendars)
	mux.HandleFunc("POST /api/calendars", h.handleCreateCalendar)
	mux.HandleFunc("GET /api/calendars/{id}", h.handleGetCalendar)
	mux.HandleFunc("PUT /api/calendars/{id}", h.handleUpdateCalendar)
	mux.HandleFunc("DELETE /api/calendars/{id}", h.handleDeleteCalendar)

	mux.HandleFunc("GET /api/events/{id}", h.handleGetEvent)
	mux.HandleFunc("POST /api/events", h.handleCreateEvent)
	mux.HandleFunc("PUT /api/events/{id}", h.handleUpdateEvent)
	mux.HandleFunc("DELETE /api/events/{id}", h.handleDeleteEvent)
	mux.HandleFunc("GET /api/events/calendar/{calendarId}", h.handleListCalendarEvents)
	mux.HandleFunc("GET /api/events/calendar/{calendarId}/timerange", h.handleEventsInWindow)

	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

type calendarRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     *int64 `json:"version,omitempty"`
}

type calendarResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int64     `json:"version"`
}

func toCalendarResponse(c *db.Calendar) calendarResponse {
	return calendarResponse{ID: c.ID, Name: c.Name, Description: c.Description, Version: c.Version}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	CalendarID  string `json:"calendarId"`
	Version     *int64 `json:"version,omitempty"`
}

type eventResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Location    string    `json:"location"`
	CalendarID  uuid.UUID `json:"calendarId"`
	Version     int64     `json:"version"`
}

func toEventResponse(e *db.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		CalendarID:  e.CalendarID,
		Version:     e.Version,
	}
}

func (h *Handler) handleListCalendars(w http.ResponseWriter, r *http.Request) {
	page, size, err := httpapi.ParsePagination(r)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	calendars, total, err := h.service.ListCalendars(r.Context(), page, size)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	items := make([]calendarResponse, len(calendars))
	for i := range calendars {
		items[i] = toCalendarResponse(&calendars[i])
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.PageResponse{
		Items: items, TotalElements: total, Page: page, Size: size,
	})
}

func (h *Handler) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	calendar, err := h.service.GetCalendar(r.Context(), id)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toCalendarResponse(calendar))
}

func (h *Handler) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	calendar, err := h.service.CreateCalendar(r.Context(), providersvc.CalendarInput{
		Name: req.Name, Description: req.Description,
	})
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toCalendarResponse(calendar))
}

func (h *Handler) handleUpdateCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	calendar, err := h.service.UpdateCalendar(r.Context(), id, providersvc.CalendarInput{
		Name: req.Name, Description: req.Description, Version: req.Version,
	})
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toCalendarResponse(calendar))
}

func (h *Handler) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	if err := h.service.DeleteCalendar(r.Context(), id); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) eventInputFromRequest(w http.ResponseWriter, r *http.Request) (providersvc.EventInput, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, "invalid request body", http.StatusBadRequest)
		return providersvc.EventInput{}, false
	}

	calendarID, err := httpapi.ParseUUID("calendarId", req.CalendarID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return providersvc.EventInput{}, false
	}
	start, err := httpapi.ParseTime("startTime", req.StartTime)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return providersvc.EventInput{}, false
	}
	end, err := httpapi.ParseTime("endTime", req.EndTime)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return providersvc.EventInput{}, false
	}

	return providersvc.EventInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		Location:    req.Location,
		CalendarID:  calendarID,
		Version:     req.Version,
	}, true
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := h.eventInputFromRequest(w, r)
	if !ok {
		return
	}

	event, err := h.service.CreateEvent(r.Context(), in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *Handler) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	in, ok := h.eventInputFromRequest(w, r)
	if !ok {
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), id, in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), id); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	calendarID, err := httpapi.ParseUUID("calendarId", r.PathValue("calendarId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	events, err := h.service.ListEventsByCalendar(r.Context(), calendarID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

// handleEventsInWindow is the busy-interval source consumed by the calendar
// service: events overlapping [start, end) in RFC 3339 form.
func (h *Handler) handleEventsInWindow(w http.ResponseWriter, r *http.Request) {
	calendarID, err := httpapi.ParseUUID("calendarId", r.PathValue("calendarId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	start, err := httpapi.ParseTime("start", r.URL.Query().Get("start"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	end, err := httpapi.ParseTime("end", r.URL.Query().Get("end"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	events, err := h.service.ListEventsInWindow(r.Context(), calendarID, start, end)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

func toEventResponses(events []db.Event) []eventResponse {
	out := make([]eventResponse, len(events))
	for i := range events {
		out[i] = toEventResponse(&events[i])
	}
	return out
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
