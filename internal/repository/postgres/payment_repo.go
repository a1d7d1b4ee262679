package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"eventbooking/internal/domain"
)

type paymentRepository struct {
	DB *sql.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (registration_id, amount_cents, transaction_ref, card_last_four, status, refund_status,
			refund_reason, paid_at, refund_requested_at, refunded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		p.RegistrationID, p.AmountCents, p.TransactionRef, p.CardLastFour, p.Status, p.RefundStatus,
		p.RefundReason, p.PaidAt, p.RefundRequestedAt, p.RefundedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err, "payments_registration_id_key") {
			return fmt.Errorf("%w: registration %s already has a payment", domain.ErrInvalidStateTransition, p.RegistrationID)
		}
		return err
	}
	return nil
}

func (r *paymentRepository) GetByRegistrationID(ctx context.Context, registrationID string) (*domain.Payment, error) {
	query := `
		SELECT id, registration_id, amount_cents, transaction_ref, card_last_four, status, refund_status,
			refund_reason, paid_at, refund_requested_at, refunded_at, updated_at
		FROM payments
		WHERE registration_id = $1
	`
	p := &domain.Payment{}
	var requestedAt, refundedAt sql.NullTime
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, registrationID).Scan(
		&p.ID, &p.RegistrationID, &p.AmountCents, &p.TransactionRef, &p.CardLastFour, &p.Status, &p.RefundStatus,
		&p.RefundReason, &p.PaidAt, &requestedAt, &refundedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRow(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if requestedAt.Valid {
		p.RefundRequestedAt = &requestedAt.Time
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	return p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, refund_status = $2, refund_reason = $3, refund_requested_at = $4, refunded_at = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query,
		p.Status, p.RefundStatus, p.RefundReason, p.RefundRequestedAt, p.RefundedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}
