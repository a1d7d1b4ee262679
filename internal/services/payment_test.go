package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbooking/internal/domain"
)

func TestPaymentService_PayUntilSoldOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 2}, domain.TierCapacity{})

	a := f.paid(t, ev.ID, "att-a", domain.TierGeneral)
	assert.Equal(t, domain.RegistrationPaid, a.Status)
	assert.Equal(t, int64(1000), a.AmountPaidCents)
	assert.Equal(t, 1, f.event(t, ev.ID).General.Remaining)

	b := f.paid(t, ev.ID, "att-b", domain.TierGeneral)
	assert.Equal(t, domain.RegistrationPaid, b.Status)
	assert.Equal(t, 0, f.event(t, ev.ID).General.Remaining)

	c := f.approved(t, ev.ID, "att-c", domain.TierGeneral)
	_, err := f.payments.Pay(ctx, c.ID, domain.PaymentDetail{CardLastFour: "4242"})
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	got := f.registration(t, c.ID)
	assert.Equal(t, domain.RegistrationApproved, got.Status)
	assert.Equal(t, int64(0), got.AmountPaidCents)
	assert.False(t, f.hasTicket(c.ID))
	_, err = f.store.Payments().GetByRegistrationID(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.event(t, ev.ID).General.Remaining)
	f.requireCapacityBounds(t, ev.ID)
}

func TestPaymentService_PayRecordsPayment(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{}, domain.TierCapacity{PriceCents: price(5000), Limit: 1})

	reg := f.approved(t, ev.ID, "att-1", domain.TierVIP)
	p, err := f.payments.Pay(context.Background(), reg.ID, domain.PaymentDetail{CardLastFour: " 1234 "})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), p.AmountCents)
	assert.Equal(t, "1234", p.CardLastFour)
	assert.Regexp(t, `^TXN-[0-9A-Z]{26}$`, p.TransactionRef)
	assert.Equal(t, domain.PaymentSuccess, p.Status)
	assert.Equal(t, domain.RefundNone, p.RefundStatus)
	assert.Equal(t, testNow, p.PaidAt)
	assert.Equal(t, 0, f.event(t, ev.ID).VIP.Remaining)
	assert.Equal(t, domain.TierVIP, f.ticket(t, reg.ID).Tier)

	sent := f.notifier.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Payment received", sent[1].Title)
}

func TestPaymentService_PayGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 5}, domain.TierCapacity{})
	pending, err := f.registrations.Register(ctx, ev.ID, "pending", domain.TierGeneral)
	require.NoError(t, err)
	paid := f.paid(t, ev.ID, "paid", domain.TierGeneral)
	approved := f.approved(t, ev.ID, "approved", domain.TierGeneral)

	tests := []struct {
		name    string
		regID   string
		card    string
		wantErr error
	}{
		{name: "pending registration", regID: pending.ID, wantErr: domain.ErrInvalidStateTransition},
		{name: "already paid", regID: paid.ID, wantErr: domain.ErrInvalidStateTransition},
		{name: "unknown registration", regID: "missing", wantErr: domain.ErrNotFound},
		{name: "bad card", regID: approved.ID, card: "12ab", wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.Pay(ctx, tt.regID, domain.PaymentDetail{CardLastFour: tt.card})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 4, f.event(t, ev.ID).General.Remaining)
	assert.Equal(t, domain.RegistrationApproved, f.registration(t, approved.ID).Status)
}

func TestPaymentService_ConcurrentPayOnLastSeat(t *testing.T) {
	const attendees = 50
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 1}, domain.TierCapacity{})

	regs := make([]*domain.Registration, attendees)
	for i := range regs {
		regs[i] = f.approved(t, ev.ID, "att-"+strconv.Itoa(i), domain.TierGeneral)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		soldOut  int
		unexpect []error
	)
	start := make(chan struct{})
	for _, reg := range regs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_, err := f.payments.Pay(ctx, id, domain.PaymentDetail{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, domain.ErrInsufficientCapacity):
				soldOut++
			default:
				unexpect = append(unexpect, err)
			}
		}(reg.ID)
	}
	close(start)
	wg.Wait()

	require.Empty(t, unexpect)
	require.Len(t, winners, 1)
	assert.Equal(t, attendees-1, soldOut)
	assert.Equal(t, 0, f.event(t, ev.ID).General.Remaining)

	for _, reg := range regs {
		got := f.registration(t, reg.ID)
		if reg.ID == winners[0] {
			assert.Equal(t, domain.RegistrationPaid, got.Status)
			assert.True(t, f.hasTicket(reg.ID))
			continue
		}
		assert.Equal(t, domain.RegistrationApproved, got.Status)
		assert.False(t, f.hasTicket(reg.ID))
	}
}

func TestPaymentService_ConcurrentPaySameRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 10}, domain.TierCapacity{})
	reg := f.approved(t, ev.ID, "att-1", domain.TierGeneral)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.payments.Pay(ctx, reg.ID, domain.PaymentDetail{}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 9, f.event(t, ev.ID).General.Remaining)
}

func TestPaymentService_RefundRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(2000), Limit: 3}, domain.TierCapacity{})
	before := f.event(t, ev.ID).General.Remaining

	reg := f.paid(t, ev.ID, "att-1", domain.TierGeneral)
	assert.Equal(t, before-1, f.event(t, ev.ID).General.Remaining)

	p, err := f.payments.RequestRefund(ctx, reg.ID, "too busy")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundRequested, p.RefundStatus)
	assert.Equal(t, domain.RegistrationRefundRequested, f.registration(t, reg.ID).Status)
	assert.Equal(t, before-1, f.event(t, ev.ID).General.Remaining)

	p, err = f.payments.ApproveRefund(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, p.Status)
	assert.Equal(t, domain.RefundCompleted, p.RefundStatus)
	assert.Equal(t, "too busy", p.RefundReason)
	require.NotNil(t, p.RefundedAt)

	assert.Equal(t, domain.RegistrationRefunded, f.registration(t, reg.ID).Status)
	assert.Equal(t, domain.TicketRefunded, f.ticket(t, reg.ID).Status)
	assert.Equal(t, before, f.event(t, ev.ID).General.Remaining)
	f.requireCapacityBounds(t, ev.ID)
}

func TestPaymentService_ApproveRefundTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(2000), Limit: 3}, domain.TierCapacity{})
	f.paid(t, ev.ID, "other", domain.TierGeneral)
	reg := f.paid(t, ev.ID, "att-1", domain.TierGeneral)
	_, err := f.payments.RequestRefund(ctx, reg.ID, "sick")
	require.NoError(t, err)

	_, err = f.payments.ApproveRefund(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)

	_, err = f.payments.ApproveRefund(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)

	_, err = f.payments.RefundByOrganizer(ctx, reg.ID, "again")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
}

func TestPaymentService_RejectRefundKeepsAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(2000), Limit: 3}, domain.TierCapacity{})
	reg := f.paid(t, ev.ID, "att-a", domain.TierGeneral)
	remaining := f.event(t, ev.ID).General.Remaining

	requestedAt := testNow
	_, err := f.payments.RequestRefund(ctx, reg.ID, "too busy")
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationRefundRequested, f.registration(t, reg.ID).Status)
	assert.Equal(t, remaining, f.event(t, ev.ID).General.Remaining)

	f.clock.Advance(time.Hour)
	p, err := f.payments.RejectRefund(ctx, reg.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentSuccess, p.Status)
	assert.Equal(t, domain.RefundRejected, p.RefundStatus)
	assert.Equal(t, "too busy", p.RefundReason)
	require.NotNil(t, p.RefundRequestedAt)
	assert.Equal(t, requestedAt, *p.RefundRequestedAt)
	assert.Nil(t, p.RefundedAt)
	assert.Equal(t, domain.RegistrationPaid, f.registration(t, reg.ID).Status)
	assert.Equal(t, domain.TicketIssued, f.ticket(t, reg.ID).Status)
	assert.Equal(t, remaining, f.event(t, ev.ID).General.Remaining)

	_, err = f.payments.RejectRefund(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	// A rejected request can be raised again.
	p, err = f.payments.RequestRefund(ctx, reg.ID, "still busy")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundRequested, p.RefundStatus)
	assert.Equal(t, "still busy", p.RefundReason)

	titles := make([]string, 0)
	for _, n := range f.notifier.Sent() {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Refund rejected")
}

func TestPaymentService_RequestRefundGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(2000), Limit: 3}, domain.TierCapacity{})
	approved := f.approved(t, ev.ID, "att-1", domain.TierGeneral)

	_, err := f.payments.RequestRefund(ctx, approved.ID, "why not")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.payments.ApproveRefund(ctx, approved.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	paid := f.paid(t, ev.ID, "att-2", domain.TierGeneral)
	_, err = f.payments.ApproveRefund(ctx, paid.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.payments.RejectRefund(ctx, paid.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.RegistrationPaid, f.registration(t, paid.ID).Status)
}

func TestPaymentService_RefundByOrganizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(2000), Limit: 3}, domain.TierCapacity{})
	reg := f.paid(t, ev.ID, "att-1", domain.TierGeneral)

	p, err := f.payments.RefundByOrganizer(ctx, reg.ID, "venue change")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, p.Status)
	assert.Equal(t, domain.RefundCompleted, p.RefundStatus)
	assert.Equal(t, "venue change", p.RefundReason)
	assert.Equal(t, domain.RegistrationRefunded, f.registration(t, reg.ID).Status)
	assert.Equal(t, domain.TicketRefunded, f.ticket(t, reg.ID).Status)
	assert.Equal(t, 3, f.event(t, ev.ID).General.Remaining)

	requested := f.paid(t, ev.ID, "att-2", domain.TierGeneral)
	_, err = f.payments.RequestRefund(ctx, requested.ID, "sick")
	require.NoError(t, err)
	_, err = f.payments.RefundByOrganizer(ctx, requested.ID, "")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 2, f.event(t, ev.ID).General.Remaining)
}

func TestPaymentService_SideChannelFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	ev := f.createEvent(t, "Go Meetup", domain.TierCapacity{PriceCents: price(1000), Limit: 1}, domain.TierCapacity{})

	reg := f.approved(t, ev.ID, "att-1", domain.TierGeneral)
	_, err := f.payments.Pay(context.Background(), reg.ID, domain.PaymentDetail{})
	require.NoError(t, err)

	assert.Equal(t, domain.RegistrationPaid, f.registration(t, reg.ID).Status)
	assert.Equal(t, 0, f.event(t, ev.ID).General.Remaining)
	assert.Len(t, f.notifier.Sent(), 2)
}
