package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventbooking/internal/domain"
)

// SweepTemporalStatus moves PUBLISHED events whose window contains now to IN_PROGRESS and
// events whose end has passed to COMPLETED. Updates are compare-and-set on the old status, so
// a concurrent cancellation always wins.
func (s *eventService) SweepTemporalStatus(ctx context.Context) ([]*domain.Event, error) {
	now := s.Clock.Now()
	events, err := s.Events.ListByStatus(ctx, domain.EventStatusPublished, domain.EventStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}

	moved := make([]*domain.Event, 0)
	var errs []error
	for _, ev := range events {
		to, from, ok := nextTemporalStatus(ev, now, s.Location)
		if !ok {
			continue
		}
		changed, err := s.Events.TransitionStatus(ctx, ev.ID, from, to, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		if !changed {
			continue
		}
		ev.Status = to
		ev.UpdatedAt = now
		moved = append(moved, ev)
		s.Metrics.IncSweepTransition(string(to))
		s.publish(ctx, sweepTopic(to), ev)
	}
	return moved, errors.Join(errs...)
}

func nextTemporalStatus(ev *domain.Event, now time.Time, loc *time.Location) (domain.EventStatus, []domain.EventStatus, bool) {
	start, end := ev.StartsAt(loc), ev.EndsAt(loc)
	switch {
	case end.Before(now):
		return domain.EventStatusCompleted, []domain.EventStatus{domain.EventStatusPublished, domain.EventStatusInProgress}, true
	case ev.Status == domain.EventStatusPublished && !now.Before(start) && now.Before(end):
		return domain.EventStatusInProgress, []domain.EventStatus{domain.EventStatusPublished}, true
	}
	return "", nil, false
}

func sweepTopic(to domain.EventStatus) string {
	if to == domain.EventStatusCompleted {
		return domain.TopicEventsCompleted
	}
	return domain.TopicEventsInProgress
}

const sweepLockKey = "eventbooking:sweep"

// Sweeper runs the temporal sweep on a fixed interval. With a Locker only the replica holding
// the lock sweeps on a given tick.
type Sweeper struct {
	events   domain.EventService
	locker   domain.Locker
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper returns a Sweeper. locker may be nil.
func NewSweeper(events domain.EventService, locker domain.Locker, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{events: events, locker: locker, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one sweep.
func (s *Sweeper) Tick(ctx context.Context) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep lock failed", slog.Any("error", err))
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				s.logger.WarnContext(ctx, "sweep lock release failed", slog.Any("error", err))
			}
		}()
	}

	moved, err := s.events.SweepTemporalStatus(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "temporal sweep failed", slog.Any("error", err))
	}
	if len(moved) > 0 {
		ids := make([]string, 0, len(moved))
		for _, ev := range moved {
			ids = append(ids, ev.ID)
		}
		s.logger.InfoContext(ctx, "temporal sweep moved events", slog.Any("event_ids", ids))
	}
}
