package services

import (
	"log/slog"
	"time"

	"eventbooking/internal/clock"
	"eventbooking/internal/domain"
	"eventbooking/internal/metrics"
)

// Deps holds the collaborators shared by the booking services.
// Notifier, Live, Metrics, Clock, Logger and Location are optional.
type Deps struct {
	Tx            domain.TxManager
	Events        domain.EventRepository
	Users         domain.UserRepository
	Registrations domain.RegistrationRepository
	Payments      domain.PaymentRepository
	Tickets       domain.TicketRepository
	Ledger        domain.CapacityLedger
	Verifier      domain.SecretVerifier
	Notifier      domain.Notifier
	Live          domain.LivePublisher
	Metrics       *metrics.Metrics
	Clock         clock.Clock
	Logger        *slog.Logger
	// Location is the time zone event dates and times are expressed in.
	Location *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return d
}
