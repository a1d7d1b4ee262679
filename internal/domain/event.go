package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventStatusPublished  EventStatus = "PUBLISHED"
	EventStatusInProgress EventStatus = "IN_PROGRESS"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusCancelled  EventStatus = "CANCELLED"
)

// Terminal reports whether no further status change is defined for the event.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// Tier is a ticket class. Each tier has its own price and capacity.
type Tier string

const (
	TierGeneral Tier = "GENERAL"
	TierVIP     Tier = "VIP"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierGeneral || t == TierVIP
}

// TierCapacity holds price and capacity counters of one tier.
// A nil PriceCents means the tier is free.
type TierCapacity struct {
	PriceCents *int64 `json:"price_cents"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// Price returns the tier price in cents, 0 for a free tier.
func (c TierCapacity) Price() int64 {
	if c.PriceCents == nil {
		return 0
	}
	return *c.PriceCents
}

// Event represents a ticketed event published by an organizer.
// swagger:model Event
type Event struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	// StartTime and EndTime are offsets from midnight of Date in the event time zone.
	StartTime time.Duration `json:"start_time"`
	EndTime   time.Duration `json:"end_time"`
	Status    EventStatus   `json:"status"`
	General   TierCapacity  `json:"general"`
	VIP       TierCapacity  `json:"vip"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Capacity returns the counters of the given tier.
func (e *Event) Capacity(t Tier) (*TierCapacity, error) {
	switch t {
	case TierGeneral:
		return &e.General, nil
	case TierVIP:
		return &e.VIP, nil
	}
	return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, t)
}

// StartsAt returns the start instant of the event in loc.
func (e *Event) StartsAt(loc *time.Location) time.Time {
	return midnight(e.Date, loc).Add(e.StartTime)
}

// EndsAt returns the end instant of the event in loc.
func (e *Event) EndsAt(loc *time.Location) time.Time {
	return midnight(e.Date, loc).Add(e.EndTime)
}

func midnight(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// Open reports whether the event still accepts bookings.
func (e *Event) Open() bool {
	return e.Status == EventStatusPublished || e.Status == EventStatusInProgress
}

// NewEvent returns a PUBLISHED event with every tier's remaining count set to its limit.
// ID is set by the repository on create.
func NewEvent(organizerID, title, location string, date time.Time, start, end time.Duration, general, vip TierCapacity, now time.Time) *Event {
	general.Remaining = general.Limit
	vip.Remaining = vip.Limit
	return &Event{
		OrganizerID: organizerID,
		Title:       title,
		Location:    location,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		Status:      EventStatusPublished,
		General:     general,
		VIP:         vip,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByStatus(ctx context.Context, statuses ...EventStatus) ([]*Event, error)
	// TransitionStatus sets the status to `to` only if the current status is one of `from`.
	// It reports whether the row was changed.
	TransitionStatus(ctx context.Context, id string, from []EventStatus, to EventStatus, at time.Time) (bool, error)
}

// CapacityLedger owns the per-event, per-tier remaining counters.
// Both operations are linearizable per (event, tier).
type CapacityLedger interface {
	// Reserve atomically decrements remaining if it is positive, or returns ErrInsufficientCapacity
	// without mutating anything.
	Reserve(ctx context.Context, eventID string, tier Tier) error
	// Release atomically increments remaining. A release that would exceed the tier limit
	// returns ErrCapacityInvariant.
	Release(ctx context.Context, eventID string, tier Tier) error
}

// CreateEventInput holds the organizer-supplied fields of a new event.
type CreateEventInput struct {
	OrganizerID string
	Title       string
	Location    string
	Date        time.Time
	StartTime   time.Duration
	EndTime     time.Duration
	General     TierCapacity
	VIP         TierCapacity
}

// CancellationOutcome records what the cascade did to one registration.
type CancellationOutcome struct {
	RegistrationID string             `json:"registration_id"`
	AttendeeID     string             `json:"attendee_id"`
	From           RegistrationStatus `json:"from"`
	To             RegistrationStatus `json:"to"`
}

// CancellationFailure records a registration the cascade could not settle.
type CancellationFailure struct {
	RegistrationID string `json:"registration_id"`
	Err            error  `json:"-"`
	Message        string `json:"message"`
}

// CancellationReport is the result of CancelEvent and ResumeCancellation.
// NoOp is set when the event was already CANCELLED or COMPLETED.
type CancellationReport struct {
	Event    *Event                `json:"event"`
	NoOp     bool                  `json:"no_op"`
	Outcomes []CancellationOutcome `json:"outcomes"`
	Failures []CancellationFailure `json:"failures"`
}

// Err joins the per-registration failures, or returns nil when the cascade settled everything.
func (r *CancellationReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("registration %s: %w", f.RegistrationID, f.Err))
	}
	return errors.Join(errs...)
}

// EventService defines organizer-facing event operations.
type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	CancelEvent(ctx context.Context, eventID, credential string) (*CancellationReport, error)
	ResumeCancellation(ctx context.Context, eventID, credential string) (*CancellationReport, error)
	SweepTemporalStatus(ctx context.Context) ([]*Event, error)
}
