package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"eventbooking/internal/domain"
)

const eventColumns = `id, organizer_id, title, location, event_date, start_seconds, end_seconds, status,
	general_price_cents, general_limit, general_remaining,
	vip_price_cents, vip_limit, vip_remaining, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func nullPrice(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func priceFromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var startSec, endSec int64
	var generalPrice, vipPrice sql.NullInt64
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Location, &e.Date, &startSec, &endSec, &e.Status,
		&generalPrice, &e.General.Limit, &e.General.Remaining,
		&vipPrice, &e.VIP.Limit, &e.VIP.Remaining, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.StartTime = time.Duration(startSec) * time.Second
	e.EndTime = time.Duration(endSec) * time.Second
	e.General.PriceCents = priceFromNull(generalPrice)
	e.VIP.PriceCents = priceFromNull(vipPrice)
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (organizer_id, title, location, event_date, start_seconds, end_seconds, status,
			general_price_cents, general_limit, general_remaining,
			vip_price_cents, vip_limit, vip_remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return conn(ctx, r.DB).QueryRowContext(ctx, query,
		e.OrganizerID, e.Title, e.Location, e.Date,
		int64(e.StartTime/time.Second), int64(e.EndTime/time.Second), e.Status,
		nullPrice(e.General.PriceCents), e.General.Limit, e.General.Remaining,
		nullPrice(e.VIP.PriceCents), e.VIP.Limit, e.VIP.Remaining,
		e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRow(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) ListByStatus(ctx context.Context, statuses ...domain.EventStatus) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE status = ANY($1) ORDER BY event_date, start_seconds`
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) TransitionStatus(ctx context.Context, id string, from []domain.EventStatus, to domain.EventStatus, at time.Time) (bool, error) {
	names := make([]string, 0, len(from))
	for _, s := range from {
		names = append(names, string(s))
	}
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
		to, at, id, pq.Array(names))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
