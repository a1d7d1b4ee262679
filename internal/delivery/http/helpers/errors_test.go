package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbooking/internal/domain"
)

func TestWriteServiceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("event ev-1: %w", domain.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"invalid input", fmt.Errorf("%w: title is required", domain.ErrInvalidInput), http.StatusBadRequest, ErrCodeBadRequest},
		{"sold out", domain.ErrInsufficientCapacity, http.StatusConflict, ErrCodeSoldOut},
		{"bad transition", domain.ErrInvalidStateTransition, http.StatusConflict, ErrCodeConflict},
		{"duplicate", domain.ErrDuplicateRegistration, http.StatusConflict, ErrCodeConflict},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/registrations/r1/pay", nil)

			WriteServiceError(rr, req, logger, tt.err)

			require.Equal(t, tt.wantStatus, rr.Code)
			var resp APIResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Nil(t, resp.Data)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error.Message, "connection reset")
			}
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  domain.PaginationParams
	}{
		{"", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"page=3&page_size=10", domain.PaginationParams{Page: 3, PageSize: 10}},
		{"page=0&page_size=-1", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"page_size=1000", domain.PaginationParams{Page: 1, PageSize: MaxPageSize}},
		{"page=abc", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/events/e1/registrations?"+tt.query, nil)
			assert.Equal(t, tt.want, ParsePagination(req))
		})
	}
	assert.Equal(t, 3, NewPaginationMeta(1, 2, 5).TotalPages)
	assert.Equal(t, 0, NewPaginationMeta(1, 0, 5).TotalPages)
}
