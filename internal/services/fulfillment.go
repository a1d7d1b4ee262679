package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"eventbooking/internal/domain"
)

func newTransactionRef(at time.Time) string {
	return "TXN-" + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// ensureOpen fails when the event no longer takes bookings.
func ensureOpen(ev *domain.Event) error {
	if !ev.Open() {
		return fmt.Errorf("%w: event %s is %s", domain.ErrInvalidStateTransition, ev.ID, ev.Status)
	}
	return nil
}

// fulfill reserves a seat, issues the ticket and records the payment for a registration that
// has already been moved to PAID in memory. It must run inside the transaction holding the
// registration lock; any error leaves the caller to roll everything back.
func (d Deps) fulfill(ctx context.Context, reg *domain.Registration, ev *domain.Event, detail domain.PaymentDetail, at time.Time) (*domain.Payment, error) {
	if err := d.Ledger.Reserve(ctx, reg.EventID, reg.Tier); err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInsufficientCapacity) {
			result = "sold_out"
		}
		d.Metrics.ObserveReservation(string(reg.Tier), result)
		return nil, fmt.Errorf("reserve capacity: %w", err)
	}
	d.Metrics.ObserveReservation(string(reg.Tier), "ok")

	if _, err := d.issueTicket(ctx, reg, ev, at); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		RegistrationID: reg.ID,
		AmountCents:    reg.AmountDueCents,
		TransactionRef: newTransactionRef(at),
		CardLastFour:   strings.TrimSpace(detail.CardLastFour),
		Status:         domain.PaymentSuccess,
		RefundStatus:   domain.RefundNone,
		PaidAt:         at,
		UpdatedAt:      at,
	}
	if err := d.Payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	reg.AmountPaidCents = reg.AmountDueCents
	if err := d.Registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return payment, nil
}

// refund completes the payment refund and invalidates the ticket for a registration that has
// already been moved to REFUNDED in memory. The seat is released only while the ticket is
// ISSUED, so a retried refund never releases twice.
func (d Deps) refund(ctx context.Context, reg *domain.Registration, payment *domain.Payment, reason string, direct bool, at time.Time) error {
	if err := payment.CompleteRefund(reason, direct, at); err != nil {
		return err
	}

	ticket, err := d.Tickets.GetByRegistrationID(ctx, reg.ID)
	switch {
	case err == nil:
		if ticket.Valid() {
			if err := d.Ledger.Release(ctx, ticket.EventID, ticket.Tier); err != nil {
				return fmt.Errorf("release capacity: %w", err)
			}
			if err := d.Tickets.UpdateStatus(ctx, ticket.ID, domain.TicketRefunded, at); err != nil {
				return fmt.Errorf("update ticket: %w", err)
			}
			d.Metrics.IncRelease()
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return fmt.Errorf("get ticket: %w", err)
	}

	if err := d.Payments.Update(ctx, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if err := d.Registrations.Update(ctx, reg); err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return nil
}

func (d Deps) paymentFor(ctx context.Context, registrationID string) (*domain.Payment, error) {
	p, err := d.Payments.GetByRegistrationID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("payment for registration %s: %w", registrationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (d Deps) lockRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := d.Registrations.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("lock registration: %w", err)
	}
	return reg, nil
}

func (d Deps) loadEvent(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := d.Events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}
