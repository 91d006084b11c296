package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/domain"
)

func TestWriteDomainError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.Validationf("bad range"), http.StatusBadRequest},
		{"not found", domain.NotFoundf("user %s", "x"), http.StatusNotFound},
		{"conflict", domain.Conflictf("overlap"), http.StatusConflict},
		{"concurrent modification", domain.ErrConcurrentModification, http.StatusInternalServerError},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWriteDomainError_InternalHidesCauseAndCarriesCorrelationID(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, errors.New("pq: duplicate key value"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body["error"], "pq:")
	assert.NotEmpty(t, body["correlationId"])
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/users?page=2&size=50", nil)
	page, size, err := ParsePagination(r)
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, size)

	r = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	page, size, err = ParsePagination(r)
	require.NoError(t, err)
	assert.Equal(t, 0, page)
	assert.Equal(t, DefaultPageSize, size)

	for _, q := range []string{"page=-1", "size=0", "size=101", "page=abc"} {
		r = httptest.NewRequest(http.MethodGet, "/api/users?"+q, nil)
		_, _, err = ParsePagination(r)
		assert.ErrorIs(t, err, domain.ErrValidation, q)
	}
}

func TestParseTime(t *testing.T) {
	_, err := ParseTime("from", "2025-06-02T10:00:00Z")
	require.NoError(t, err)

	_, err = ParseTime("from", "02.06.2025")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseUUID(t *testing.T) {
	_, err := ParseUUID("userId", "b9e6f4a0-0000-4000-8000-000000000001")
	require.NoError(t, err)

	_, err = ParseUUID("userId", "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrValidation)
}
