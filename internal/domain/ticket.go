package domain

import (
	"context"
	"time"
)

// TicketStatus follows the terminal outcome of the owning registration.
type TicketStatus string

const (
	TicketIssued   TicketStatus = "ISSUED"
	TicketRefunded TicketStatus = "REFUNDED"
	TicketExpired  TicketStatus = "EXPIRED"
)

// Ticket is issued exactly once per registration, when it first reaches PAID.
// swagger:model Ticket
type Ticket struct {
	ID             string       `json:"id"`
	RegistrationID string       `json:"registration_id"`
	EventID        string       `json:"event_id"`
	Tier           Tier         `json:"tier"`
	Status         TicketStatus `json:"status"`
	Code           string       `json:"code"`
	IssuedAt       time.Time    `json:"issued_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Valid reports whether the ticket still holds a seat.
func (t *Ticket) Valid() bool {
	return t.Status == TicketIssued
}

// TicketRepository defines storage operations for tickets.
type TicketRepository interface {
	// Create fails with ErrInvalidStateTransition when the registration already has a ticket.
	Create(ctx context.Context, t *Ticket) error
	GetByRegistrationID(ctx context.Context, registrationID string) (*Ticket, error)
	UpdateStatus(ctx context.Context, id string, status TicketStatus, at time.Time) error
}
