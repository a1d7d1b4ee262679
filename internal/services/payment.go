package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"eventbooking/internal/domain"
)

// Refund paths, used as metric labels and in log lines.
const (
	refundPathApproved     = "approved"
	refundPathOrganizer    = "organizer"
	refundPathCancellation = "cancellation"
)

type paymentService struct {
	Deps
}

// NewPaymentService creates a PaymentService over the given collaborators.
func NewPaymentService(d Deps) domain.PaymentService {
	return &paymentService{Deps: d.withDefaults()}
}

func validCardLastFour(s string) bool {
	if s == "" {
		return true
	}
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *paymentService) Pay(ctx context.Context, registrationID string, detail domain.PaymentDetail) (*domain.Payment, error) {
	detail.CardLastFour = strings.TrimSpace(detail.CardLastFour)
	if !validCardLastFour(detail.CardLastFour) {
		return nil, fmt.Errorf("%w: card_last_four must be 4 digits", domain.ErrInvalidInput)
	}

	var (
		reg     *domain.Registration
		ev      *domain.Event
		payment *domain.Payment
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reg, err = s.lockRegistration(ctx, registrationID); err != nil {
			return err
		}
		now := s.Clock.Now()
		if err := reg.Transition(domain.RegistrationApproved, domain.RegistrationPaid, now); err != nil {
			return err
		}
		if ev, err = s.loadEvent(ctx, reg.EventID); err != nil {
			return err
		}
		if err := ensureOpen(ev); err != nil {
			return err
		}
		payment, err = s.fulfill(ctx, reg, ev, detail, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "payment captured",
		slog.String("registration_id", reg.ID),
		slog.String("transaction_ref", payment.TransactionRef),
		slog.Int64("amount_cents", payment.AmountCents))
	s.notify(ctx, reg.AttendeeID, "Payment received",
		fmt.Sprintf("Your payment for %s was received. Your %s ticket has been issued.", ev.Title, reg.Tier))
	return payment, nil
}

func (s *paymentService) RequestRefund(ctx context.Context, registrationID, reason string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.lockRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		now := s.Clock.Now()
		if err := reg.Transition(domain.RegistrationPaid, domain.RegistrationRefundRequested, now); err != nil {
			return err
		}
		if payment, err = s.paymentFor(ctx, reg.ID); err != nil {
			return err
		}
		if err := payment.RequestRefund(strings.TrimSpace(reason), now); err != nil {
			return err
		}
		if err := s.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := s.Registrations.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) ApproveRefund(ctx context.Context, registrationID string) (*domain.Payment, error) {
	reg, payment, err := s.settleRefund(ctx, registrationID, domain.RegistrationRefundRequested, "", false)
	if err != nil {
		return nil, err
	}
	s.Metrics.IncRefund(refundPathApproved)
	s.notify(ctx, reg.AttendeeID, "Refund approved", s.eventLine(ctx, reg, "Your refund for %s was approved."))
	return payment, nil
}

func (s *paymentService) RejectRefund(ctx context.Context, registrationID string) (*domain.Payment, error) {
	var (
		reg     *domain.Registration
		payment *domain.Payment
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reg, err = s.lockRegistration(ctx, registrationID); err != nil {
			return err
		}
		if payment, err = s.paymentFor(ctx, reg.ID); err != nil {
			return err
		}
		now := s.Clock.Now()
		if err := payment.RejectRefund(now); err != nil {
			return err
		}
		if err := reg.Transition(domain.RegistrationRefundRequested, domain.RegistrationPaid, now); err != nil {
			return err
		}
		if err := s.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := s.Registrations.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, reg.AttendeeID, "Refund rejected", s.eventLine(ctx, reg, "Your refund request for %s was declined. Your ticket stays valid."))
	return payment, nil
}

func (s *paymentService) RefundByOrganizer(ctx context.Context, registrationID, reason string) (*domain.Payment, error) {
	reg, payment, err := s.settleRefund(ctx, registrationID, domain.RegistrationPaid, strings.TrimSpace(reason), true)
	if err != nil {
		return nil, err
	}
	s.Metrics.IncRefund(refundPathOrganizer)
	s.notify(ctx, reg.AttendeeID, "Refund issued", s.eventLine(ctx, reg, "The organizer refunded your registration for %s."))
	return payment, nil
}

// settleRefund moves a registration from `from` to REFUNDED in one transaction.
func (s *paymentService) settleRefund(ctx context.Context, registrationID string, from domain.RegistrationStatus, reason string, direct bool) (*domain.Registration, *domain.Payment, error) {
	var (
		reg     *domain.Registration
		payment *domain.Payment
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reg, err = s.lockRegistration(ctx, registrationID); err != nil {
			return err
		}
		now := s.Clock.Now()
		if err := reg.Transition(from, domain.RegistrationRefunded, now); err != nil {
			return err
		}
		if payment, err = s.paymentFor(ctx, reg.ID); err != nil {
			return err
		}
		return s.refund(ctx, reg, payment, reason, direct, now)
	})
	if err != nil {
		return nil, nil, err
	}
	s.Logger.InfoContext(ctx, "registration refunded",
		slog.String("registration_id", reg.ID),
		slog.String("transaction_ref", payment.TransactionRef))
	return reg, payment, nil
}
