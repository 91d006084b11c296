package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/calendarsvc"
	"meetsync/internal/calendarsvc/db"
	"meetsync/internal/httpapi"
	"meetsync/internal/timeslot"
)

type Handler struct {
	service *calendarsvc.Service
}

func NewHandler(service *calendarsvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/meetings", h.handleFindMeetings)
	mux.HandleFunc("GET /api/meetings/slots", h.handleFindSlots)
	mux.HandleFunc("POST /api/meetings", h.handleCreateMeeting)
	mux.HandleFunc("GET /api/meetings/{id}", h.handleGetMeeting)
	mux.HandleFunc("PUT /api/meetings/{id}", h.handleUpdateMeeting)
	mux.HandleFunc("DELETE /api/meetings/{id}", h.handleDeleteMeeting)

	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

type meetingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	CalendarID  string `json:"calendarId"`
	Version     *int64 `json:"version,omitempty"`
}

type meetingResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Location    string    `json:"location"`
	CalendarID  uuid.UUID `json:"calendarId"`
	Version     int64     `json:"version"`
}

func toResponse(m *db.Meeting) meetingResponse {
	return meetingResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Location:    m.Location,
		CalendarID:  m.CalendarID,
		Version:     m.Version,
	}
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (calendarsvc.MeetingInput, bool) {
	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, "invalid request body", http.StatusBadRequest)
		return calendarsvc.MeetingInput{}, false
	}

	calendarID, err := httpapi.ParseUUID("calendarId", req.CalendarID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return calendarsvc.MeetingInput{}, false
	}
	start, err := httpapi.ParseTime("startTime", req.StartTime)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return calendarsvc.MeetingInput{}, false
	}
	end, err := httpapi.ParseTime("endTime", req.EndTime)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return calendarsvc.MeetingInput{}, false
	}

	return calendarsvc.MeetingInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		Location:    req.Location,
		CalendarID:  calendarID,
		Version:     req.Version,
	}, true
}

// queryScope pulls the userId and calendarId query parameters every meeting
// route requires.
func queryScope(w http.ResponseWriter, r *http.Request) (userID, calendarID uuid.UUID, ok bool) {
	userID, err := httpapi.ParseUUID("userId", r.URL.Query().Get("userId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	calendarID, err = httpapi.ParseUUID("calendarId", r.URL.Query().Get("calendarId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, calendarID, true
}

func queryWindow(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	from, err := httpapi.ParseTime("from", r.URL.Query().Get("from"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return time.Time{}, time.Time{}, false
	}
	to, err = httpapi.ParseTime("to", r.URL.Query().Get("to"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) handleFindMeetings(w http.ResponseWriter, r *http.Request) {
	userID, calendarID, ok := queryScope(w, r)
	if !ok {
		return
	}
	from, to, ok := queryWindow(w, r)
	if !ok {
		return
	}
	page, size, err := httpapi.ParsePagination(r)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	meetings, total, err := h.service.FindMeetings(r.Context(), userID, calendarID, from, to, page, size)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	items := make([]meetingResponse, len(meetings))
	for i := range meetings {
		items[i] = toResponse(&meetings[i])
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.PageResponse{
		Items: items, TotalElements: total, Page: page, Size: size,
	})
}

func (h *Handler) handleFindSlots(w http.ResponseWriter, r *http.Request) {
	userID, calendarID, ok := queryScope(w, r)
	if !ok {
		return
	}
	from, to, ok := queryWindow(w, r)
	if !ok {
		return
	}
	minutes, err := httpapi.ParseInt("durationMinutes", r.URL.Query().Get("durationMinutes"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	page, size, err := httpapi.ParsePagination(r)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	slots, total, err := h.service.FindAvailableSlots(r.Context(), userID, calendarID, from, to,
		time.Duration(minutes)*time.Minute, page, size)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	if slots == nil {
		slots = []timeslot.Slot{}
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.PageResponse{
		Items: slots, TotalElements: total, Page: page, Size: size,
	})
}

func (h *Handler) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	userID, calendarID, ok := queryScope(w, r)
	if !ok {
		return
	}

	meeting, err := h.service.GetMeeting(r.Context(), userID, calendarID, meetingID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(meeting))
}

func (h *Handler) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.ParseUUID("userId", r.URL.Query().Get("userId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	meeting, err := h.service.CreateMeeting(r.Context(), userID, in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toResponse(meeting))
}

func (h *Handler) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	userID, err := httpapi.ParseUUID("userId", r.URL.Query().Get("userId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	meeting, err := h.service.UpdateMeeting(r.Context(), userID, meetingID, in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(meeting))
}

func (h *Handler) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	userID, calendarID, ok := queryScope(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMeeting(r.Context(), userID, calendarID, meetingID); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
