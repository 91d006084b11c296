package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"meetsync/internal/httpapi"
	"meetsync/internal/usersvc"
	"meetsync/internal/usersvc/db"
)

type Handler struct {
	service *usersvc.Service
}

func NewHandler(service *usersvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", h.handleListUsers)
	mux.HandleFunc("POST /api/users", h.handleCreateUser)
	mux.HandleFunc("GET /api/users/{id}", h.handleGetUser)
	mux.HandleFunc("PUT /api/users/{id}", h.handleUpdateUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.handleDeleteUser)

	mux.HandleFunc("POST /api/users/{id}/calendars/{calendarId}", h.handleAddCalendar)
	mux.HandleFunc("DELETE /api/users/{id}/calendars/{calendarId}", h.handleRemoveCalendar)

	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

type userRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	CalendarIDs []string `json:"calendarIds"`
	Version     *int64   `json:"version,omitempty"`
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CalendarIDs []string  `json:"calendarIds"`
	Version     int64     `json:"version"`
}

func toResponse(u *db.User) userResponse {
	calendarIDs := make([]string, len(u.CalendarIDs))
	for i, id := range u.CalendarIDs {
		calendarIDs[i] = id.String()
	}
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		CalendarIDs: calendarIDs,
		Version:     u.Version,
	}
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (usersvc.UserInput, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, "invalid request body", http.StatusBadRequest)
		return usersvc.UserInput{}, false
	}

	calendarIDs := make([]uuid.UUID, 0, len(req.CalendarIDs))
	for _, raw := range req.CalendarIDs {
		id, err := httpapi.ParseUUID("calendarId", raw)
		if err != nil {
			httpapi.WriteDomainError(w, err)
			return usersvc.UserInput{}, false
		}
		calendarIDs = append(calendarIDs, id)
	}

	return usersvc.UserInput{
		Name:        req.Name,
		Email:       req.Email,
		CalendarIDs: calendarIDs,
		Version:     req.Version,
	}, true
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, size, err := httpapi.ParsePagination(r)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	users, total, err := h.service.ListUsers(r.Context(), page, size)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	items := make([]userResponse, len(users))
	for i := range users {
		items[i] = toResponse(&users[i])
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.PageResponse{
		Items: items, TotalElements: total, Page: page, Size: size,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toResponse(user))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) calendarPairFromPath(w http.ResponseWriter, r *http.Request) (userID, calendarID uuid.UUID, ok bool) {
	userID, err := httpapi.ParseUUID("id", r.PathValue("id"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	calendarID, err = httpapi.ParseUUID("calendarId", r.PathValue("calendarId"))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, calendarID, true
}

func (h *Handler) handleAddCalendar(w http.ResponseWriter, r *http.Request) {
	userID, calendarID, ok := h.calendarPairFromPath(w, r)
	if !ok {
		return
	}

	user, err := h.service.AddCalendar(r.Context(), userID, calendarID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) handleRemoveCalendar(w http.ResponseWriter, r *http.Request) {
	userID, calendarID, ok := h.calendarPairFromPath(w, r)
	if !ok {
		return
	}

	user, err := h.service.RemoveCalendar(r.Context(), userID, calendarID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
