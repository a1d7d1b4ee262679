package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbooking/internal/domain"
)

func TestRegistrationService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 2}, domain.TierCapacity{})
	cancelled := f.createEvent(t, "Old Meetup", domain.TierCapacity{Limit: 2}, domain.TierCapacity{})
	_, err := f.store.Events().TransitionStatus(ctx, cancelled.ID,
		[]domain.EventStatus{domain.EventStatusPublished}, domain.EventStatusCancelled, testNow)
	require.NoError(t, err)

	_, err = f.registrations.Register(ctx, ev.ID, "taken", domain.TierGeneral)
	require.NoError(t, err)

	tests := []struct {
		name       string
		eventID    string
		attendeeID string
		tier       domain.Tier
		wantErr    error
		wantDue    int64
	}{
		{name: "paid tier", eventID: ev.ID, attendeeID: "att-1", tier: domain.TierGeneral, wantDue: 1000},
		{name: "duplicate pair", eventID: ev.ID, attendeeID: "taken", tier: domain.TierGeneral, wantErr: domain.ErrDuplicateRegistration},
		{name: "unknown event", eventID: "missing", attendeeID: "att-2", tier: domain.TierGeneral, wantErr: domain.ErrNotFound},
		{name: "unknown attendee", eventID: ev.ID, attendeeID: "ghost", tier: domain.TierGeneral, wantErr: domain.ErrNotFound},
		{name: "unknown tier", eventID: ev.ID, attendeeID: "att-3", tier: "GOLD", wantErr: domain.ErrInvalidInput},
		{name: "tier not offered", eventID: ev.ID, attendeeID: "att-4", tier: domain.TierVIP, wantErr: domain.ErrInvalidInput},
		{name: "cancelled event", eventID: cancelled.ID, attendeeID: "att-5", tier: domain.TierGeneral, wantErr: domain.ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := f.registrations.Register(ctx, tt.eventID, tt.attendeeID, tt.tier)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, reg)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, reg.ID)
			assert.Equal(t, domain.RegistrationPending, reg.Status)
			assert.Equal(t, tt.wantDue, reg.AmountDueCents)
		})
	}

	// Registering never touches capacity.
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
}

func TestRegistrationService_ApprovePaidTier(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 2}, domain.TierCapacity{})

	reg := f.approved(t, ev.ID, "att-1", domain.TierGeneral)

	assert.Equal(t, domain.RegistrationApproved, reg.Status)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
	assert.False(t, f.hasTicket(reg.ID))
	require.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, "Registration approved", f.notifier.Sent()[0].Title)

	_, err := f.registrations.Approve(context.Background(), reg.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.RegistrationApproved, f.registration(t, reg.ID).Status)
}

func TestRegistrationService_ApproveFreeTierFulfillsInOneStep(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, "Free Workshop", domain.TierCapacity{Limit: 3}, domain.TierCapacity{})

	reg := f.approved(t, ev.ID, "att-d", domain.TierGeneral)

	assert.Equal(t, domain.RegistrationPaid, reg.Status)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
	tk := f.ticket(t, reg.ID)
	assert.Equal(t, domain.TicketIssued, tk.Status)
	assert.Regexp(t, `^FREE-[0-9A-F]{8}$`, tk.Code)
	p := f.payment(t, reg.ID)
	assert.Equal(t, int64(0), p.AmountCents)
	assert.Equal(t, domain.PaymentSuccess, p.Status)
	assert.Equal(t, domain.RefundNone, p.RefundStatus)
	assert.Equal(t, "Registration confirmed", f.notifier.Sent()[0].Title)

	_, err := f.payments.Pay(context.Background(), reg.ID, domain.PaymentDetail{})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
}

func TestRegistrationService_ApproveFreeTierSoldOutStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Free Workshop", domain.TierCapacity{Limit: 1}, domain.TierCapacity{})
	f.approved(t, ev.ID, "first", domain.TierGeneral)

	reg, err := f.registrations.Register(ctx, ev.ID, "second", domain.TierGeneral)
	require.NoError(t, err)
	_, err = f.registrations.Approve(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	got := f.registration(t, reg.ID)
	assert.Equal(t, domain.RegistrationPending, got.Status)
	assert.False(t, f.hasTicket(reg.ID))
	_, err = f.store.Payments().GetByRegistrationID(ctx, reg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.event(t, ev.ID).General.Remaining)
}

func TestRegistrationService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 2}, domain.TierCapacity{})

	reg, err := f.registrations.Register(ctx, ev.ID, "att-1", domain.TierGeneral)
	require.NoError(t, err)
	rejected, err := f.registrations.Reject(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationRejected, rejected.Status)
	require.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, "att-1", f.notifier.Sent()[0].RecipientID)
	assert.Contains(t, f.notifier.Sent()[0].Body, "Go Meetup")

	for name, op := range map[string]func(context.Context, string) (*domain.Registration, error){
		"reject again": f.registrations.Reject,
		"approve":      f.registrations.Approve,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := op(ctx, reg.ID)
			require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
			assert.Equal(t, domain.RegistrationRejected, f.registration(t, reg.ID).Status)
		})
	}

	approved := f.approved(t, ev.ID, "att-2", domain.TierGeneral)
	_, err = f.registrations.Reject(ctx, approved.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestRegistrationService_UnknownRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registrations.Approve(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.registrations.Reject(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.registrations.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationService_Lists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{Limit: 10}, domain.TierCapacity{})
	other := f.createEvent(t, "Rust Meetup", domain.TierCapacity{Limit: 10}, domain.TierCapacity{})

	for _, att := range []string{"a", "b", "c"} {
		f.clock.Advance(1)
		_, err := f.registrations.Register(ctx, ev.ID, att, domain.TierGeneral)
		require.NoError(t, err)
	}
	_, err := f.registrations.Register(ctx, other.ID, "a", domain.TierGeneral)
	require.NoError(t, err)

	page, total, err := f.registrations.ListByEvent(ctx, ev.ID, domain.PaginationParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].AttendeeID)

	_, _, err = f.registrations.ListByEvent(ctx, "missing", domain.PaginationParams{Page: 1, PageSize: 2})
	require.ErrorIs(t, err, domain.ErrNotFound)

	mine, err := f.registrations.ListByAttendee(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
