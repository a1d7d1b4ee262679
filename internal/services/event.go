package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventbooking/internal/domain"
)

type eventService struct {
	Deps
}

// NewEventService creates an EventService over the given collaborators.
func NewEventService(d Deps) domain.EventService {
	return &eventService{Deps: d.withDefaults()}
}

func validateTier(name string, c domain.TierCapacity) error {
	if c.Limit < 0 {
		return fmt.Errorf("%w: %s limit must not be negative", domain.ErrInvalidInput, name)
	}
	if c.PriceCents != nil && *c.PriceCents < 0 {
		return fmt.Errorf("%w: %s price must not be negative", domain.ErrInvalidInput, name)
	}
	return nil
}

func validateCreateEvent(in domain.CreateEventInput) error {
	if in.OrganizerID == "" {
		return fmt.Errorf("%w: organizer id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}
	if in.StartTime < 0 || in.EndTime > 24*time.Hour || in.EndTime <= in.StartTime {
		return fmt.Errorf("%w: start time must be before end time within the day", domain.ErrInvalidInput)
	}
	if err := validateTier("general", in.General); err != nil {
		return err
	}
	if err := validateTier("vip", in.VIP); err != nil {
		return err
	}
	if in.General.Limit == 0 && in.VIP.Limit == 0 {
		return fmt.Errorf("%w: at least one tier needs capacity", domain.ErrInvalidInput)
	}
	return nil
}

func (s *eventService) CreateEvent(ctx context.Context, in domain.CreateEventInput) (*domain.Event, error) {
	if err := validateCreateEvent(in); err != nil {
		return nil, err
	}
	if _, err := s.Users.GetByID(ctx, in.OrganizerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("organizer %s: %w", in.OrganizerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get organizer: %w", err)
	}

	ev := domain.NewEvent(in.OrganizerID, strings.TrimSpace(in.Title), strings.TrimSpace(in.Location),
		in.Date, in.StartTime, in.EndTime, in.General, in.VIP, s.Clock.Now())
	if err := s.Events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.Logger.InfoContext(ctx, "event created",
		slog.String("event_id", ev.ID),
		slog.String("organizer_id", ev.OrganizerID))
	return ev, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	return s.loadEvent(ctx, eventID)
}
