package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"eventbooking/internal/delivery/http/helpers"
	"eventbooking/internal/delivery/http/middleware"
	"eventbooking/internal/domain"
)

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04"
)

// TierRequest is the per-tier part of CreateEventRequest. Omit price_cents for a free tier.
type TierRequest struct {
	PriceCents *int64 `json:"price_cents"`
	Limit      int    `json:"limit"`
}

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title     string      `json:"title"`
	Location  string      `json:"location"`
	Date      string      `json:"date" example:"2026-03-10"`
	StartTime string      `json:"start_time" example:"18:00"`
	EndTime   string      `json:"end_time" example:"21:00"`
	General   TierRequest `json:"general"`
	VIP       TierRequest `json:"vip"`

	date       time.Time
	start, end time.Duration
}

// parseTimeOfDay reads "HH:MM" as an offset from midnight. "24:00" is accepted as end of day.
func parseTimeOfDay(s string) (time.Duration, error) {
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Validate implements helpers.Validator. Range rules are left to the event service.
func (c *CreateEventRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Title) == "" {
		errs = append(errs, "title is required")
	}
	d, err := time.Parse(dateLayout, c.Date)
	if err != nil {
		errs = append(errs, "date must be YYYY-MM-DD")
	}
	c.date = d
	if c.start, err = parseTimeOfDay(c.StartTime); err != nil {
		errs = append(errs, "start_time must be HH:MM")
	}
	if c.end, err = parseTimeOfDay(c.EndTime); err != nil {
		errs = append(errs, "end_time must be HH:MM")
	}
	return errs
}

// EventSuccessResponse is the success response envelope for endpoints returning one event.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CancelEventRequest is the request body for the cancel endpoints.
type CancelEventRequest struct {
	Credential string `json:"credential"`
}

// Validate implements helpers.Validator.
func (c CancelEventRequest) Validate() []string {
	if c.Credential == "" {
		return []string{"credential is required"}
	}
	return nil
}

// CancellationSuccessResponse is the success response envelope for the cancel endpoints.
type CancellationSuccessResponse struct {
	Data  *domain.CancellationReport `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
	}
}

// CreateEvent godoc
// @Summary Create a new event
// @Description Creates a PUBLISHED event owned by the authenticated user. Each tier's remaining capacity starts at its limit.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (organizer unknown)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	ev, err := c.Service.CreateEvent(r.Context(), domain.CreateEventInput{
		OrganizerID: userID,
		Title:       req.Title,
		Location:    req.Location,
		Date:        req.date,
		StartTime:   req.start,
		EndTime:     req.end,
		General:     domain.TierCapacity{PriceCents: req.General.PriceCents, Limit: req.General.Limit},
		VIP:         domain.TierCapacity{PriceCents: req.VIP.PriceCents, Limit: req.VIP.Limit},
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, ev)
}

// GetEvent godoc
// @Summary Get an event by ID
// @Description Returns the event with its current status and remaining capacity per tier.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the event"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	ev, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ev)
}

// CancelEvent godoc
// @Summary Cancel an event
// @Description Cancels the event and settles every registration: paid ones are refunded, pending and approved ones are cancelled. Registrations that could not be settled are listed in data.failures and can be retried with the resume endpoint. Cancelling an event that is already cancelled or completed returns data.no_op=true.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body CancelEventRequest true "Organizer credential"
// @Success 200 {object} controllers.CancellationSuccessResponse "data contains the cancellation report"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/cancel [post]
func (c *EventController) CancelEvent(w http.ResponseWriter, r *http.Request) {
	c.cancel(w, r, c.Service.CancelEvent)
}

// ResumeCancellation godoc
// @Summary Resume an interrupted cancellation
// @Description Re-runs the settlement of a CANCELLED event. Registrations already settled are left untouched.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body CancelEventRequest true "Organizer credential"
// @Success 200 {object} controllers.CancellationSuccessResponse "data contains the cancellation report"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (event is not cancelled)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/cancel/resume [post]
func (c *EventController) ResumeCancellation(w http.ResponseWriter, r *http.Request) {
	c.cancel(w, r, c.Service.ResumeCancellation)
}

func (c *EventController) cancel(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, eventID, credential string) (*domain.CancellationReport, error)) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	var req CancelEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	report, err := run(r.Context(), eventID, req.Credential)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if len(report.Failures) > 0 {
		c.Logger.WarnContext(r.Context(), "cancellation left registrations unsettled",
			"event_id", eventID, "failures", len(report.Failures), "err", fmt.Sprint(report.Err()))
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, report)
}
