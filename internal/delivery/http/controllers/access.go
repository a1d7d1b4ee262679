package controllers

import (
	"context"
	"fmt"

	"eventbooking/internal/delivery/http/helpers"
	"eventbooking/internal/domain"
)

// accessGuard ties an authenticated user to the registration or event an operation targets.
type accessGuard struct {
	Events        domain.EventService
	Registrations domain.RegistrationService
}

func (g accessGuard) requireOrganizer(ctx context.Context, userID, eventID string) (*domain.Event, error) {
	ev, err := g.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != userID {
		return nil, fmt.Errorf("%w: event %s is organized by someone else", helpers.ErrForbidden, eventID)
	}
	return ev, nil
}

// registrationAs loads the registration and checks userID is its attendee, or the organizer of
// its event when organizer is set.
func (g accessGuard) registrationAs(ctx context.Context, userID, registrationID string, organizer bool) (*domain.Registration, error) {
	reg, err := g.Registrations.Get(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if organizer {
		if _, err := g.requireOrganizer(ctx, userID, reg.EventID); err != nil {
			return nil, err
		}
		return reg, nil
	}
	if reg.AttendeeID != userID {
		return nil, fmt.Errorf("%w: registration %s belongs to another attendee", helpers.ErrForbidden, registrationID)
	}
	return reg, nil
}

// canView reports whether userID is the attendee or the organizer of reg's event.
func (g accessGuard) canView(ctx context.Context, userID string, reg *domain.Registration) error {
	if reg.AttendeeID == userID {
		return nil
	}
	_, err := g.requireOrganizer(ctx, userID, reg.EventID)
	return err
}
