package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"eventbooking/internal/domain"
)

// ErrForbidden is returned by controllers when the caller is authenticated but is not the
// attendee or organizer the operation belongs to.
var ErrForbidden = errors.New("forbidden")

// WriteServiceError maps a service error onto the response envelope. Unknown errors are logged
// and reported as 500 without their message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
	case errors.Is(err, ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientCapacity):
		WriteJSONError(w, http.StatusConflict, ErrCodeSoldOut, err.Error())
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrDuplicateRegistration):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
