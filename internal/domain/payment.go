package domain

import (
	"context"
	"fmt"
	"time"
)

// PaymentStatus is the settlement status of a payment.
type PaymentStatus string

const (
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// RefundStatus tracks a refund independently of the settlement status.
type RefundStatus string

const (
	RefundNone      RefundStatus = "NONE"
	RefundRequested RefundStatus = "REQUESTED"
	RefundCompleted RefundStatus = "COMPLETED"
	RefundRejected  RefundStatus = "REJECTED"
)

// Payment is the monetary side of a registration that reached PAID.
// swagger:model Payment
type Payment struct {
	ID                string        `json:"id"`
	RegistrationID    string        `json:"registration_id"`
	AmountCents       int64         `json:"amount_cents"`
	TransactionRef    string        `json:"transaction_ref"`
	CardLastFour      string        `json:"card_last_four,omitempty"`
	Status            PaymentStatus `json:"status"`
	RefundStatus      RefundStatus  `json:"refund_status"`
	RefundReason      string        `json:"refund_reason,omitempty"`
	PaidAt            time.Time     `json:"paid_at"`
	RefundRequestedAt *time.Time    `json:"refund_requested_at,omitempty"`
	RefundedAt        *time.Time    `json:"refunded_at,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// PaymentDetail is what the payer supplies with a payment.
type PaymentDetail struct {
	CardLastFour string
}

// RequestRefund records an attendee's refund request. Only NONE and REJECTED payments can be
// asked for a refund again.
func (p *Payment) RequestRefund(reason string, at time.Time) error {
	if p.Status != PaymentSuccess || (p.RefundStatus != RefundNone && p.RefundStatus != RefundRejected) {
		return fmt.Errorf("%w: payment %s is %s with refund %s",
			ErrInvalidStateTransition, p.ID, p.Status, p.RefundStatus)
	}
	p.RefundStatus = RefundRequested
	p.RefundReason = reason
	p.RefundRequestedAt = &at
	p.UpdatedAt = at
	return nil
}

// CompleteRefund marks the payment refunded. A pending request is required unless direct is set
// (organizer-initiated refunds and cancellations skip the request step).
func (p *Payment) CompleteRefund(reason string, direct bool, at time.Time) error {
	if p.Status != PaymentSuccess {
		return fmt.Errorf("%w: payment %s is already %s", ErrInvalidStateTransition, p.ID, p.Status)
	}
	if !direct && p.RefundStatus != RefundRequested {
		return fmt.Errorf("%w: payment %s has refund %s, need %s",
			ErrInvalidStateTransition, p.ID, p.RefundStatus, RefundRequested)
	}
	p.Status = PaymentRefunded
	p.RefundStatus = RefundCompleted
	if reason != "" {
		p.RefundReason = reason
	}
	p.RefundedAt = &at
	p.UpdatedAt = at
	return nil
}

// RejectRefund declines a pending refund request. The payment stays SUCCESS; the reason and
// request time are kept as an audit trail.
func (p *Payment) RejectRefund(at time.Time) error {
	if p.RefundStatus != RefundRequested {
		return fmt.Errorf("%w: payment %s has refund %s, need %s",
			ErrInvalidStateTransition, p.ID, p.RefundStatus, RefundRequested)
	}
	p.RefundStatus = RefundRejected
	p.Status = PaymentSuccess
	p.RefundedAt = nil
	p.UpdatedAt = at
	return nil
}

// PaymentRepository defines storage operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByRegistrationID(ctx context.Context, registrationID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}

// PaymentService drives the payment/refund state machine.
type PaymentService interface {
	Pay(ctx context.Context, registrationID string, detail PaymentDetail) (*Payment, error)
	RequestRefund(ctx context.Context, registrationID, reason string) (*Payment, error)
	ApproveRefund(ctx context.Context, registrationID string) (*Payment, error)
	RejectRefund(ctx context.Context, registrationID string) (*Payment, error)
	RefundByOrganizer(ctx context.Context, registrationID, reason string) (*Payment, error)
}
