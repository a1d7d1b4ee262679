package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"eventbooking/internal/delivery/http/helpers"
	"eventbooking/internal/delivery/http/middleware"
	"eventbooking/internal/domain"
)

const maxReasonLength = 500

// PayRequest is the request body for POST /registrations/{registrationID}/pay.
type PayRequest struct {
	CardLastFour string `json:"card_last_four" example:"4242"`
}

// RefundRequest is the request body for the refund request and organizer refund endpoints.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// Validate implements helpers.Validator.
func (r *RefundRequest) Validate() []string {
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > maxReasonLength {
		return []string{"reason must be at most 500 characters"}
	}
	return nil
}

// PaymentSuccessResponse is the success response envelope for the payment endpoints.
type PaymentSuccessResponse struct {
	Data  *domain.Payment   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
	guard   accessGuard
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService, registrations domain.RegistrationService, events domain.EventService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
		guard:   accessGuard{Events: events, Registrations: registrations},
	}
}

// authorize resolves the caller and checks they own the registration in the given role.
func (c *PaymentController) authorize(w http.ResponseWriter, r *http.Request, organizer bool) (string, bool) {
	registrationID := r.PathValue("registrationID")
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	if _, err := c.guard.registrationAs(r.Context(), userID, registrationID, organizer); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return "", false
	}
	return registrationID, true
}

func (c *PaymentController) respond(w http.ResponseWriter, r *http.Request, p *domain.Payment, err error) {
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Pay godoc
// @Summary Pay for an approved registration
// @Description Attendee only. Reserves a seat, issues the ticket and records the payment in one step.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Param body body PayRequest true "Payment detail"
// @Success 200 {object} controllers.PaymentSuccessResponse "data contains the payment"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict or sold_out"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/pay [post]
func (c *PaymentController) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	registrationID, ok := c.authorize(w, r, false)
	if !ok {
		return
	}
	p, err := c.Service.Pay(r.Context(), registrationID, domain.PaymentDetail{CardLastFour: req.CardLastFour})
	c.respond(w, r, p, err)
}

// RequestRefund godoc
// @Summary Request a refund
// @Description Attendee only. Moves a PAID registration to REFUND_REQUESTED for the organizer to decide.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Param body body RefundRequest true "Refund reason"
// @Success 200 {object} controllers.PaymentSuccessResponse "data contains the payment"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/refund-request [post]
func (c *PaymentController) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	registrationID, ok := c.authorize(w, r, false)
	if !ok {
		return
	}
	p, err := c.Service.RequestRefund(r.Context(), registrationID, req.Reason)
	c.respond(w, r, p, err)
}

// ApproveRefund godoc
// @Summary Approve a refund request
// @Description Organizer only. Refunds the payment and returns the seat to the tier.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Success 200 {object} controllers.PaymentSuccessResponse "data contains the payment"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/refund-approve [post]
func (c *PaymentController) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	c.organizerDecision(w, r, c.Service.ApproveRefund)
}

// RejectRefund godoc
// @Summary Reject a refund request
// @Description Organizer only. The registration returns to PAID; the request reason and time are kept on the payment.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Success 200 {object} controllers.PaymentSuccessResponse "data contains the payment"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/refund-reject [post]
func (c *PaymentController) RejectRefund(w http.ResponseWriter, r *http.Request) {
	c.organizerDecision(w, r, c.Service.RejectRefund)
}

// RefundByOrganizer godoc
// @Summary Refund a paid registration directly
// @Description Organizer only. Refunds a PAID registration without a prior request.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Param body body RefundRequest true "Refund reason"
// @Success 200 {object} controllers.PaymentSuccessResponse "data contains the payment"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/refund [post]
func (c *PaymentController) RefundByOrganizer(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	registrationID, ok := c.authorize(w, r, true)
	if !ok {
		return
	}
	p, err := c.Service.RefundByOrganizer(r.Context(), registrationID, req.Reason)
	c.respond(w, r, p, err)
}

func (c *PaymentController) organizerDecision(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, registrationID string) (*domain.Payment, error)) {
	registrationID, ok := c.authorize(w, r, true)
	if !ok {
		return
	}
	p, err := op(r.Context(), registrationID)
	c.respond(w, r, p, err)
}
