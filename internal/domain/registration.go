package domain

import (
	"context"
	"fmt"
	"time"
)

// RegistrationStatus is the state of an attendee's request for one event.
type RegistrationStatus string

const (
	RegistrationPending         RegistrationStatus = "PENDING"
	RegistrationApproved        RegistrationStatus = "APPROVED"
	RegistrationRejected        RegistrationStatus = "REJECTED"
	RegistrationPaid            RegistrationStatus = "PAID"
	RegistrationRefundRequested RegistrationStatus = "REFUND_REQUESTED"
	RegistrationRefunded        RegistrationStatus = "REFUNDED"
	RegistrationCancelled       RegistrationStatus = "CANCELLED"
)

// Terminal reports whether no further transition is defined from s.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case RegistrationRejected, RegistrationRefunded, RegistrationCancelled:
		return true
	}
	return false
}

// HoldsCapacity reports whether a registration in state s owns a reserved seat.
func (s RegistrationStatus) HoldsCapacity() bool {
	return s == RegistrationPaid || s == RegistrationRefundRequested
}

var registrationTransitions = map[RegistrationStatus]map[RegistrationStatus]bool{
	RegistrationPending:         {RegistrationApproved: true, RegistrationPaid: true, RegistrationRejected: true, RegistrationCancelled: true},
	RegistrationApproved:        {RegistrationPaid: true, RegistrationCancelled: true},
	RegistrationPaid:            {RegistrationRefundRequested: true, RegistrationRefunded: true},
	RegistrationRefundRequested: {RegistrationRefunded: true, RegistrationPaid: true},
	RegistrationRejected:        {},
	RegistrationRefunded:        {},
	RegistrationCancelled:       {},
}

// CanTransition reports whether the registration state machine has an edge from -> to.
// Operation-specific guards (free path, cascade-only cancellation) are enforced by the services.
func CanTransition(from, to RegistrationStatus) bool {
	return registrationTransitions[from][to]
}

// Registration is an attendee's request for one event.
// swagger:model Registration
type Registration struct {
	ID              string             `json:"id"`
	EventID         string             `json:"event_id"`
	AttendeeID      string             `json:"attendee_id"`
	Tier            Tier               `json:"tier"`
	Status          RegistrationStatus `json:"status"`
	AmountDueCents  int64              `json:"amount_due_cents"`
	AmountPaidCents int64              `json:"amount_paid_cents"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewRegistration returns a PENDING registration. ID is set by the repository on create.
func NewRegistration(eventID, attendeeID string, tier Tier, amountDue int64, now time.Time) *Registration {
	return &Registration{
		EventID:        eventID,
		AttendeeID:     attendeeID,
		Tier:           tier,
		Status:         RegistrationPending,
		AmountDueCents: amountDue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Transition moves the registration to `to` if the state machine allows it and the current
// status is `want`. On failure nothing is changed.
func (r *Registration) Transition(want, to RegistrationStatus, at time.Time) error {
	if r.Status != want || !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: registration %s is %s, need %s to move to %s",
			ErrInvalidStateTransition, r.ID, r.Status, want, to)
	}
	r.Status = to
	r.UpdatedAt = at
	return nil
}

// RegistrationRepository defines storage operations for registrations.
type RegistrationRepository interface {
	// Create fails with ErrDuplicateRegistration when the (event, attendee) pair exists.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	// GetForUpdate loads the registration and locks it until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Registration, error)
	GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*Registration, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Registration, error)
	ListByEventIDPage(ctx context.Context, eventID string, p PaginationParams) ([]*Registration, int, error)
	ListByAttendeeID(ctx context.Context, attendeeID string) ([]*Registration, error)
	Update(ctx context.Context, reg *Registration) error
}

// RegistrationService drives the registration state machine.
type RegistrationService interface {
	Register(ctx context.Context, eventID, attendeeID string, tier Tier) (*Registration, error)
	// Approve moves PENDING to APPROVED, or straight to PAID with a ticket when nothing is due.
	Approve(ctx context.Context, registrationID string) (*Registration, error)
	Reject(ctx context.Context, registrationID string) (*Registration, error)
	Get(ctx context.Context, registrationID string) (*Registration, error)
	ListByEvent(ctx context.Context, eventID string, p PaginationParams) ([]*Registration, int, error)
	ListByAttendee(ctx context.Context, attendeeID string) ([]*Registration, error)
}
