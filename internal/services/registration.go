package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventbooking/internal/domain"
)

type registrationService struct {
	Deps
}

// NewRegistrationService creates a RegistrationService over the given collaborators.
func NewRegistrationService(d Deps) domain.RegistrationService {
	return &registrationService{Deps: d.withDefaults()}
}

func (s *registrationService) Register(ctx context.Context, eventID, attendeeID string, tier domain.Tier) (*domain.Registration, error) {
	if attendeeID == "" {
		return nil, fmt.Errorf("%w: attendee id is required", domain.ErrInvalidInput)
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}
	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := ensureOpen(ev); err != nil {
		return nil, err
	}
	capacity, err := ev.Capacity(tier)
	if err != nil {
		return nil, err
	}
	if capacity.Limit == 0 {
		return nil, fmt.Errorf("%w: event %s does not offer tier %s", domain.ErrInvalidInput, ev.ID, tier)
	}

	if _, err := s.Users.GetByID(ctx, attendeeID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("attendee %s: %w", attendeeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get attendee: %w", err)
	}

	if _, err := s.Registrations.GetByEventAndAttendee(ctx, eventID, attendeeID); err == nil {
		return nil, domain.ErrDuplicateRegistration
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get registration: %w", err)
	}

	reg := domain.NewRegistration(eventID, attendeeID, tier, capacity.Price(), s.Clock.Now())
	if err := s.Registrations.Create(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			return nil, err
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.Logger.InfoContext(ctx, "registration created",
		slog.String("registration_id", reg.ID),
		slog.String("event_id", eventID),
		slog.String("tier", string(tier)))
	return reg, nil
}

func (s *registrationService) Approve(ctx context.Context, registrationID string) (*domain.Registration, error) {
	var reg *domain.Registration
	var ev *domain.Event
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reg, err = s.lockRegistration(ctx, registrationID); err != nil {
			return err
		}
		if ev, err = s.loadEvent(ctx, reg.EventID); err != nil {
			return err
		}
		if err := ensureOpen(ev); err != nil {
			return err
		}
		now := s.Clock.Now()
		if reg.AmountDueCents > 0 {
			if err := reg.Transition(domain.RegistrationPending, domain.RegistrationApproved, now); err != nil {
				return err
			}
			if err := s.Registrations.Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration: %w", err)
			}
			return nil
		}
		// Nothing is due: approval and fulfillment are one step.
		if err := reg.Transition(domain.RegistrationPending, domain.RegistrationPaid, now); err != nil {
			return err
		}
		_, err = s.fulfill(ctx, reg, ev, domain.PaymentDetail{}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if reg.Status == domain.RegistrationPaid {
		s.notify(ctx, reg.AttendeeID, "Registration confirmed",
			fmt.Sprintf("You are registered for %s. Your %s ticket has been issued.", ev.Title, reg.Tier))
	} else {
		s.notify(ctx, reg.AttendeeID, "Registration approved",
			fmt.Sprintf("Your registration for %s was approved. Complete the payment to get your ticket.", ev.Title))
	}
	return reg, nil
}

func (s *registrationService) Reject(ctx context.Context, registrationID string) (*domain.Registration, error) {
	var reg *domain.Registration
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reg, err = s.lockRegistration(ctx, registrationID); err != nil {
			return err
		}
		if err := reg.Transition(domain.RegistrationPending, domain.RegistrationRejected, s.Clock.Now()); err != nil {
			return err
		}
		if err := s.Registrations.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, reg.AttendeeID, "Registration rejected", s.eventLine(ctx, reg, "Your registration for %s was rejected."))
	return reg, nil
}

func (s *registrationService) Get(ctx context.Context, registrationID string) (*domain.Registration, error) {
	reg, err := s.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("registration %s: %w", registrationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) ListByEvent(ctx context.Context, eventID string, p domain.PaginationParams) ([]*domain.Registration, int, error) {
	if _, err := s.loadEvent(ctx, eventID); err != nil {
		return nil, 0, err
	}
	regs, total, err := s.Registrations.ListByEventIDPage(ctx, eventID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	return regs, total, nil
}

func (s *registrationService) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Registration, error) {
	regs, err := s.Registrations.ListByAttendeeID(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// eventLine formats msg with the event title, falling back to a generic name when the event
// cannot be read. Used only for notification bodies.
func (d Deps) eventLine(ctx context.Context, reg *domain.Registration, msg string) string {
	title := "your event"
	if ev, err := d.Events.GetByID(ctx, reg.EventID); err == nil {
		title = ev.Title
	}
	return fmt.Sprintf(msg, title)
}
