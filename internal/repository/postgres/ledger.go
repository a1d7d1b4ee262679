package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"eventbooking/internal/domain"
)

// Each tier has its own counter columns. The guarded UPDATE is the check-and-decrement, so
// concurrent reservations on the same row serialize on the row lock and never oversell.
var (
	reserveQueries = map[domain.Tier]string{
		domain.TierGeneral: `UPDATE events SET general_remaining = general_remaining - 1 WHERE id = $1 AND general_remaining > 0`,
		domain.TierVIP:     `UPDATE events SET vip_remaining = vip_remaining - 1 WHERE id = $1 AND vip_remaining > 0`,
	}
	releaseQueries = map[domain.Tier]string{
		domain.TierGeneral: `UPDATE events SET general_remaining = general_remaining + 1 WHERE id = $1 AND general_remaining < general_limit`,
		domain.TierVIP:     `UPDATE events SET vip_remaining = vip_remaining + 1 WHERE id = $1 AND vip_remaining < vip_limit`,
	}
)

type capacityLedger struct {
	DB *sql.DB
}

// NewCapacityLedger returns a CapacityLedger backed by the events table counters.
func NewCapacityLedger(db *sql.DB) domain.CapacityLedger {
	return &capacityLedger{DB: db}
}

func (l *capacityLedger) Reserve(ctx context.Context, eventID string, tier domain.Tier) error {
	query, ok := reserveQueries[tier]
	if !ok {
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}
	changed, err := l.exec(ctx, query, eventID)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: event %s tier %s is sold out", domain.ErrInsufficientCapacity, eventID, tier)
	}
	return nil
}

func (l *capacityLedger) Release(ctx context.Context, eventID string, tier domain.Tier) error {
	query, ok := releaseQueries[tier]
	if !ok {
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}
	changed, err := l.exec(ctx, query, eventID)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: release on event %s tier %s would exceed limit", domain.ErrCapacityInvariant, eventID, tier)
	}
	return nil
}

// exec runs a guarded counter update. A missing event is reported as ErrNotFound rather than
// as a failed guard.
func (l *capacityLedger) exec(ctx context.Context, query, eventID string) (bool, error) {
	q := conn(ctx, l.DB)
	res, err := q.ExecContext(ctx, query, eventID)
	if err != nil {
		if isMalformedID(err) {
			return false, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return false, nil
}
