package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"eventbooking/internal/domain"
)

type ticketRepository struct {
	DB *sql.DB
}

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(db *sql.DB) domain.TicketRepository {
	return &ticketRepository{DB: db}
}

func (r *ticketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (registration_id, event_id, tier, status, code, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		t.RegistrationID, t.EventID, t.Tier, t.Status, t.Code, t.IssuedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err, "tickets_registration_id_key") {
			return fmt.Errorf("%w: registration %s already has a ticket", domain.ErrInvalidStateTransition, t.RegistrationID)
		}
		return err
	}
	return nil
}

func (r *ticketRepository) GetByRegistrationID(ctx context.Context, registrationID string) (*domain.Ticket, error) {
	query := `
		SELECT id, registration_id, event_id, tier, status, code, issued_at, updated_at
		FROM tickets
		WHERE registration_id = $1
	`
	t := &domain.Ticket{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, registrationID).
		Scan(&t.ID, &t.RegistrationID, &t.EventID, &t.Tier, &t.Status, &t.Code, &t.IssuedAt, &t.UpdatedAt)
	if err != nil {
		if isNoRow(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`, status, at, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}
