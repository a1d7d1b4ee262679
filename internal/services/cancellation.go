package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventbooking/internal/domain"
)

const cancellationReason = "event cancelled"

// authorizeOrganizer loads the event and checks credential against its organizer's secret.
func (s *eventService) authorizeOrganizer(ctx context.Context, eventID, credential string) (*domain.Event, error) {
	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	organizer, err := s.Users.GetByID(ctx, ev.OrganizerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: organizer of event %s not found", domain.ErrUnauthorized, ev.ID)
		}
		return nil, fmt.Errorf("get organizer: %w", err)
	}
	if credential == "" || !s.Verifier.Verify(credential, organizer.SecretHash) {
		return nil, fmt.Errorf("%w: credential does not match organizer of event %s", domain.ErrUnauthorized, ev.ID)
	}
	return ev, nil
}

// CancelEvent cancels an event and settles every registration. Cancelling an event that is
// already CANCELLED or COMPLETED is a no-op. Per-registration failures are collected in the
// report; ResumeCancellation finishes them later.
func (s *eventService) CancelEvent(ctx context.Context, eventID, credential string) (*domain.CancellationReport, error) {
	ev, err := s.authorizeOrganizer(ctx, eventID, credential)
	if err != nil {
		return nil, err
	}
	if ev.Status.Terminal() {
		return &domain.CancellationReport{Event: ev, NoOp: true}, nil
	}

	now := s.Clock.Now()
	changed, err := s.Events.TransitionStatus(ctx, ev.ID,
		[]domain.EventStatus{domain.EventStatusPublished, domain.EventStatusInProgress},
		domain.EventStatusCancelled, now)
	if err != nil {
		return nil, fmt.Errorf("cancel event: %w", err)
	}
	if !changed {
		// Lost the race against another cancel or the sweep.
		if ev, err = s.loadEvent(ctx, eventID); err != nil {
			return nil, err
		}
		return &domain.CancellationReport{Event: ev, NoOp: true}, nil
	}
	ev.Status = domain.EventStatusCancelled
	ev.UpdatedAt = now
	s.Logger.InfoContext(ctx, "event cancelled", slog.String("event_id", ev.ID))

	report, err := s.cascade(ctx, ev, true)
	s.publish(ctx, domain.TopicEventsCancelled, report.Event)
	return report, err
}

// ResumeCancellation re-walks the registrations of a CANCELLED event and settles the ones an
// interrupted cascade left behind.
func (s *eventService) ResumeCancellation(ctx context.Context, eventID, credential string) (*domain.CancellationReport, error) {
	ev, err := s.authorizeOrganizer(ctx, eventID, credential)
	if err != nil {
		return nil, err
	}
	if ev.Status != domain.EventStatusCancelled {
		return nil, fmt.Errorf("%w: event %s is %s, need %s",
			domain.ErrInvalidStateTransition, ev.ID, ev.Status, domain.EventStatusCancelled)
	}
	return s.cascade(ctx, ev, false)
}

// cascade settles each registration in its own transaction. With notifyAll every registrant
// hears about the cancellation; otherwise only registrations changed by this walk do.
func (s *eventService) cascade(ctx context.Context, ev *domain.Event, notifyAll bool) (*domain.CancellationReport, error) {
	report := &domain.CancellationReport{
		Event:    ev,
		Outcomes: []domain.CancellationOutcome{},
		Failures: []domain.CancellationFailure{},
	}
	regs, err := s.Registrations.ListByEventID(ctx, ev.ID)
	if err != nil {
		return report, fmt.Errorf("list registrations: %w", err)
	}

	for _, r := range regs {
		outcome, err := s.settleCancelled(ctx, r.ID)
		if err != nil {
			s.Metrics.IncCascadeOutcome("failed")
			s.Logger.ErrorContext(ctx, "cancellation cascade step failed",
				slog.String("event_id", ev.ID),
				slog.String("registration_id", r.ID),
				slog.Any("error", err))
			report.Failures = append(report.Failures, domain.CancellationFailure{
				RegistrationID: r.ID,
				Err:            err,
				Message:        err.Error(),
			})
			continue
		}
		if outcome != nil {
			s.Metrics.IncCascadeOutcome(string(outcome.To))
			report.Outcomes = append(report.Outcomes, *outcome)
		}
		if notifyAll || outcome != nil {
			s.notify(ctx, r.AttendeeID, "Event cancelled", cancellationBody(ev, outcome))
		}
	}

	if fresh, err := s.Events.GetByID(ctx, ev.ID); err == nil {
		report.Event = fresh
	}
	s.Logger.InfoContext(ctx, "cancellation cascade finished",
		slog.String("event_id", ev.ID),
		slog.Int("settled", len(report.Outcomes)),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}

// settleCancelled applies the cancellation effect to one registration. It returns nil when the
// registration was already terminal.
func (s *eventService) settleCancelled(ctx context.Context, registrationID string) (*domain.CancellationOutcome, error) {
	var outcome *domain.CancellationOutcome
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.lockRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		from := reg.Status
		now := s.Clock.Now()

		switch {
		case from.HoldsCapacity():
			if err := reg.Transition(from, domain.RegistrationRefunded, now); err != nil {
				return err
			}
			payment, err := s.paymentFor(ctx, reg.ID)
			if err != nil {
				return err
			}
			if err := s.refund(ctx, reg, payment, cancellationReason, true, now); err != nil {
				return err
			}
		case from == domain.RegistrationPending || from == domain.RegistrationApproved:
			if err := reg.Transition(from, domain.RegistrationCancelled, now); err != nil {
				return err
			}
			if err := s.expireTicket(ctx, reg.ID, now); err != nil {
				return err
			}
			if err := s.Registrations.Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration: %w", err)
			}
		default:
			return nil
		}

		outcome = &domain.CancellationOutcome{
			RegistrationID: reg.ID,
			AttendeeID:     reg.AttendeeID,
			From:           from,
			To:             reg.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil && outcome.To == domain.RegistrationRefunded {
		s.Metrics.IncRefund(refundPathCancellation)
	}
	return outcome, nil
}

func (s *eventService) expireTicket(ctx context.Context, registrationID string, now time.Time) error {
	ticket, err := s.Tickets.GetByRegistrationID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get ticket: %w", err)
	}
	if !ticket.Valid() {
		return nil
	}
	if err := s.Tickets.UpdateStatus(ctx, ticket.ID, domain.TicketExpired, now); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

func cancellationBody(ev *domain.Event, outcome *domain.CancellationOutcome) string {
	body := fmt.Sprintf("%s on %s has been cancelled by the organizer.", ev.Title, ev.Date.Format("2006-01-02"))
	if outcome != nil && outcome.To == domain.RegistrationRefunded {
		body += " Your payment has been refunded."
	}
	return body
}
