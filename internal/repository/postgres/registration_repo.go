package postgres

import (
	"context"
	"database/sql"

	"eventbooking/internal/domain"
)

const registrationColumns = `id, event_id, attendee_id, tier, status, amount_due_cents, amount_paid_cents, created_at, updated_at`

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := row.Scan(&reg.ID, &reg.EventID, &reg.AttendeeID, &reg.Tier, &reg.Status,
		&reg.AmountDueCents, &reg.AmountPaidCents, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (event_id, attendee_id, tier, status, amount_due_cents, amount_paid_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		reg.EventID, reg.AttendeeID, reg.Tier, reg.Status, reg.AmountDueCents, reg.AmountPaidCents, reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if err != nil {
		if isUniqueViolation(err, "registrations_event_attendee_key") {
			return domain.ErrDuplicateRegistration
		}
		return err
	}
	return nil
}

func (r *registrationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Registration, error) {
	reg, err := scanRegistration(conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		if isNoRow(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
}

func (r *registrationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
}

func (r *registrationRepository) GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*domain.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND attendee_id = $2`, eventID, attendeeID)
}

func (r *registrationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		if isMalformedID(err) {
			return []*domain.Registration{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	regs := []*domain.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *registrationRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at, id`, eventID)
}

func (r *registrationRepository) ListByEventIDPage(ctx context.Context, eventID string, p domain.PaginationParams) ([]*domain.Registration, int, error) {
	var total int
	if err := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}
	regs, err := r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		eventID, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

func (r *registrationRepository) ListByAttendeeID(ctx context.Context, attendeeID string) ([]*domain.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE attendee_id = $1 ORDER BY created_at, id`, attendeeID)
}

func (r *registrationRepository) Update(ctx context.Context, reg *domain.Registration) error {
	query := `
		UPDATE registrations
		SET status = $1, amount_paid_cents = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query, reg.Status, reg.AmountPaidCents, reg.UpdatedAt, reg.ID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
