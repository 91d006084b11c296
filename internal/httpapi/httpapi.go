// Package httpapi carries the JSON plumbing shared by the three services:
// response helpers, domain-error to status-code mapping, and query-parameter
// parsing for pagination and time windows.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageResponse is the envelope for paginated list endpoints.
type PageResponse struct {
	Items         any `json:"items"`
	TotalElements int `json:"totalElements"`
	Page          int `json:"page"`
	Size          int `json:"size"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// WriteDomainError maps the error taxonomy to status codes. Validation and
// NotFound and Conflict surface their message; anything else (including
// exhausted retry budgets) is logged under a correlation ID and returned as
// a generic failure carrying that ID, never the internal error text.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		WriteError(w, err.Error(), http.StatusConflict)
	default:
		id := domain.CorrelationID()
		slog.Error("request failed", "correlation_id", id, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":         "an internal error occurred",
			"correlationId": id,
		})
	}
}

// ParseUUID parses a path or query value as a UUID.
func ParseUUID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid %s: %q", name, value)
	}
	return id, nil
}

// ParseTime parses an RFC 3339 query value.
func ParseTime(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid %s: %q (want RFC 3339)", name, value)
	}
	return t, nil
}

// ParseInt parses a positive integer query value.
func ParseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, domain.Validationf("invalid %s: %q", name, value)
	}
	return n, nil
}

// ParsePagination reads zero-based page and size query parameters with
// defaults and an upper size bound.
func ParsePagination(r *http.Request) (page, size int, err error) {
	page, size = 0, DefaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 0 {
			return 0, 0, domain.Validationf("invalid page: %q", v)
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size < 1 || size > MaxPageSize {
			return 0, 0, domain.Validationf("invalid size: %q", v)
		}
	}
	return page, size, nil
}
