package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventbooking/internal/clock"
	"eventbooking/internal/domain"
	"eventbooking/internal/repository/memory"
)

const organizerSecret = "organizer-secret"

var (
	testNow   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	eventDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

type sentNotification struct {
	RecipientID string
	Title       string
	Body        string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, recipientID, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{RecipientID: recipientID, Title: title, Body: body})
	return m.err
}

func (m *mockNotifier) Sent() []sentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentNotification(nil), m.sent...)
}

type publishedMessage struct {
	Topic   string
	Payload any
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, publishedMessage{Topic: topic, Payload: payload})
	return m.err
}

func (m *mockPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.msgs))
	for _, msg := range m.msgs {
		out = append(out, msg.Topic)
	}
	return out
}

// plainVerifier compares secrets verbatim; tests store the secret itself as the hash.
type plainVerifier struct{}

func (plainVerifier) Verify(provided, stored string) bool { return provided == stored }

type fixture struct {
	store     *memory.Store
	clock     *clock.Fake
	notifier  *mockNotifier
	live      *mockPublisher
	organizer *domain.User
	deps      Deps

	registrations domain.RegistrationService
	payments      domain.PaymentService
	events        domain.EventService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	organizer := &domain.User{ID: "org-1", Email: "org@example.com", FullName: "Olga Organizer", SecretHash: organizerSecret}
	store.PutUser(organizer)
	for _, id := range seededAttendees() {
		store.PutUser(&domain.User{ID: id, Email: id + "@example.com", FullName: id})
	}

	f := &fixture{
		store:     store,
		clock:     clock.NewFake(testNow),
		notifier:  &mockNotifier{},
		live:      &mockPublisher{},
		organizer: organizer,
	}
	f.deps = Deps{
		Tx:            store,
		Events:        store.Events(),
		Users:         store.Users(),
		Registrations: store.Registrations(),
		Payments:      store.Payments(),
		Tickets:       store.Tickets(),
		Ledger:        store.Ledger(),
		Verifier:      plainVerifier{},
		Notifier:      f.notifier,
		Live:          f.live,
		Clock:         f.clock,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.registrations = NewRegistrationService(f.deps)
	f.payments = NewPaymentService(f.deps)
	f.events = NewEventService(f.deps)
	return f
}

// seededAttendees lists the attendee IDs the tests register with. Anything else is unknown.
func seededAttendees() []string {
	ids := []string{
		"a", "b", "c", "approved", "first", "late", "other", "paid", "pending", "second", "taken",
		"att-a", "att-b", "att-c", "att-d", "att-approved", "att-done", "att-paid", "att-pending", "att-rejected",
	}
	for i := 0; i < 100; i++ {
		ids = append(ids, "att-"+strconv.Itoa(i))
	}
	return ids
}

func price(cents int64) *int64 { return &cents }

func (f *fixture) createEvent(t *testing.T, title string, general, vip domain.TierCapacity) *domain.Event {
	t.Helper()
	ev, err := f.events.CreateEvent(context.Background(), domain.CreateEventInput{
		OrganizerID: f.organizer.ID,
		Title:       title,
		Location:    "Berlin",
		Date:        eventDate,
		StartTime:   18 * time.Hour,
		EndTime:     21 * time.Hour,
		General:     general,
		VIP:         vip,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) approved(t *testing.T, eventID, attendeeID string, tier domain.Tier) *domain.Registration {
	t.Helper()
	ctx := context.Background()
	reg, err := f.registrations.Register(ctx, eventID, attendeeID, tier)
	require.NoError(t, err)
	reg, err = f.registrations.Approve(ctx, reg.ID)
	require.NoError(t, err)
	return reg
}

func (f *fixture) paid(t *testing.T, eventID, attendeeID string, tier domain.Tier) *domain.Registration {
	t.Helper()
	reg := f.approved(t, eventID, attendeeID, tier)
	if reg.Status == domain.RegistrationPaid {
		return reg
	}
	_, err := f.payments.Pay(context.Background(), reg.ID, domain.PaymentDetail{CardLastFour: "4242"})
	require.NoError(t, err)
	return f.registration(t, reg.ID)
}

func (f *fixture) registration(t *testing.T, id string) *domain.Registration {
	t.Helper()
	reg, err := f.store.Registrations().GetByID(context.Background(), id)
	require.NoError(t, err)
	return reg
}

func (f *fixture) event(t *testing.T, id string) *domain.Event {
	t.Helper()
	ev, err := f.store.Events().GetByID(context.Background(), id)
	require.NoError(t, err)
	return ev
}

func (f *fixture) ticket(t *testing.T, registrationID string) *domain.Ticket {
	t.Helper()
	tk, err := f.store.Tickets().GetByRegistrationID(context.Background(), registrationID)
	require.NoError(t, err)
	return tk
}

func (f *fixture) payment(t *testing.T, registrationID string) *domain.Payment {
	t.Helper()
	p, err := f.store.Payments().GetByRegistrationID(context.Background(), registrationID)
	require.NoError(t, err)
	return p
}

func (f *fixture) hasTicket(registrationID string) bool {
	_, err := f.store.Tickets().GetByRegistrationID(context.Background(), registrationID)
	return !errors.Is(err, domain.ErrNotFound)
}

// requireCapacityBounds checks 0 <= remaining <= limit on every tier of the event.
func (f *fixture) requireCapacityBounds(t *testing.T, eventID string) {
	t.Helper()
	ev := f.event(t, eventID)
	for _, c := range []domain.TierCapacity{ev.General, ev.VIP} {
		require.GreaterOrEqual(t, c.Remaining, 0)
		require.LessOrEqual(t, c.Remaining, c.Limit)
	}
}
