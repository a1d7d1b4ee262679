// Package memory is an in-process implementation of the booking repositories. It honours the
// same locking contract as the Postgres store: registration rows are locked by GetForUpdate
// until the unit of work ends, and ledger counters are guarded per (event, tier).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventbooking/internal/domain"
)

type txKey struct{}

// unitOfWork collects undo steps and held row locks for one WithinTx call.
type unitOfWork struct {
	undo []func()
	held map[string]chan struct{}
}

func txFromContext(ctx context.Context) *unitOfWork {
	uow, _ := ctx.Value(txKey{}).(*unitOfWork)
	return uow
}

func (u *unitOfWork) onRollback(fn func()) {
	if u != nil {
		u.undo = append(u.undo, fn)
	}
}

type counter struct {
	mu        sync.Mutex
	limit     int
	remaining int
}

// Store keeps every entity in maps. Entities are copied on the way in and out so callers can
// only change state through the repository methods.
type Store struct {
	mu            sync.RWMutex
	events        map[string]*domain.Event
	users         map[string]*domain.User
	registrations map[string]*domain.Registration
	regByPair     map[string]string
	payments      map[string]*domain.Payment
	tickets       map[string]*domain.Ticket

	countersMu sync.Mutex
	counters   map[string]*counter

	locksMu  sync.Mutex
	rowLocks map[string]chan struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		events:        make(map[string]*domain.Event),
		users:         make(map[string]*domain.User),
		registrations: make(map[string]*domain.Registration),
		regByPair:     make(map[string]string),
		payments:      make(map[string]*domain.Payment),
		tickets:       make(map[string]*domain.Ticket),
		counters:      make(map[string]*counter),
		rowLocks:      make(map[string]chan struct{}),
	}
}

// WithinTx implements domain.TxManager. Nested calls join the outer unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	uow := &unitOfWork{held: make(map[string]chan struct{})}
	err := fn(context.WithValue(ctx, txKey{}, uow))
	if err != nil {
		for i := len(uow.undo) - 1; i >= 0; i-- {
			uow.undo[i]()
		}
	}
	for _, l := range uow.held {
		<-l
	}
	return err
}

func (s *Store) rowLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.rowLocks[key] = l
	}
	return l
}

// lockRow blocks until the row is free or ctx is done. Outside a unit of work it is a no-op.
func (s *Store) lockRow(ctx context.Context, key string) error {
	uow := txFromContext(ctx)
	if uow == nil {
		return nil
	}
	if _, ok := uow.held[key]; ok {
		return nil
	}
	l := s.rowLock(key)
	select {
	case l <- struct{}{}:
		uow.held[key] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ledgerKey(eventID string, tier domain.Tier) string {
	return eventID + ":" + string(tier)
}

func pairKey(eventID, attendeeID string) string {
	return eventID + "|" + attendeeID
}

func (s *Store) counter(eventID string, tier domain.Tier) *counter {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	return s.counters[ledgerKey(eventID, tier)]
}

// PutUser stores a user. The engine never creates users; cmd/server seeds them from
// MEMORY_SEED_USERS.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		u.ID = cp.ID
	}
	s.users[cp.ID] = &cp
}

// Users returns the store as a domain.UserRepository.
func (s *Store) Users() domain.UserRepository { return userRepo{s} }

// Events returns the store as a domain.EventRepository.
func (s *Store) Events() domain.EventRepository { return eventRepo{s} }

// Ledger returns the store as a domain.CapacityLedger.
func (s *Store) Ledger() domain.CapacityLedger { return ledger{s} }

// Registrations returns the store as a domain.RegistrationRepository.
func (s *Store) Registrations() domain.RegistrationRepository { return registrationRepo{s} }

// Payments returns the store as a domain.PaymentRepository.
func (s *Store) Payments() domain.PaymentRepository { return paymentRepo{s} }

// Tickets returns the store as a domain.TicketRepository.
func (s *Store) Tickets() domain.TicketRepository { return ticketRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Create(_ context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	r.s.mu.Lock()
	r.s.events[e.ID] = &cp
	r.s.mu.Unlock()

	r.s.countersMu.Lock()
	r.s.counters[ledgerKey(e.ID, domain.TierGeneral)] = &counter{limit: e.General.Limit, remaining: e.General.Remaining}
	r.s.counters[ledgerKey(e.ID, domain.TierVIP)] = &counter{limit: e.VIP.Limit, remaining: e.VIP.Remaining}
	r.s.countersMu.Unlock()
	return nil
}

// snapshot copies an event and overlays the live ledger counters. Callers hold s.mu.
func (r eventRepo) snapshot(e *domain.Event) *domain.Event {
	cp := *e
	for _, tier := range []domain.Tier{domain.TierGeneral, domain.TierVIP} {
		if c := r.s.counter(e.ID, tier); c != nil {
			c.mu.Lock()
			tc, _ := cp.Capacity(tier)
			tc.Remaining = c.remaining
			c.mu.Unlock()
		}
	}
	return &cp
}

func (r eventRepo) GetByID(_ context.Context, id string) (*domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.snapshot(e), nil
}

func (r eventRepo) ListByStatus(_ context.Context, statuses ...domain.EventStatus) ([]*domain.Event, error) {
	want := make(map[domain.EventStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Event, 0)
	for _, e := range r.s.events {
		if want[e.Status] {
			out = append(out, r.snapshot(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r eventRepo) TransitionStatus(ctx context.Context, id string, from []domain.EventStatus, to domain.EventStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	matched := false
	for _, st := range from {
		if e.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	prevStatus, prevUpdated := e.Status, e.UpdatedAt
	e.Status = to
	e.UpdatedAt = at
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		e.Status, e.UpdatedAt = prevStatus, prevUpdated
		r.s.mu.Unlock()
	})
	return true, nil
}

type ledger struct{ s *Store }

// Reserve takes the seat immediately and gives it back if the unit of work rolls back. Until
// then other reservers see it as taken.
func (l ledger) Reserve(ctx context.Context, eventID string, tier domain.Tier) error {
	c := l.s.counter(eventID, tier)
	if c == nil {
		return fmt.Errorf("ledger %s/%s: %w", eventID, tier, domain.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining <= 0 {
		return fmt.Errorf("%w: event %s tier %s is sold out", domain.ErrInsufficientCapacity, eventID, tier)
	}
	c.remaining--
	txFromContext(ctx).onRollback(func() {
		c.mu.Lock()
		c.remaining++
		c.mu.Unlock()
	})
	return nil
}

func (l ledger) Release(ctx context.Context, eventID string, tier domain.Tier) error {
	c := l.s.counter(eventID, tier)
	if c == nil {
		return fmt.Errorf("ledger %s/%s: %w", eventID, tier, domain.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining >= c.limit {
		return fmt.Errorf("%w: release on event %s tier %s would exceed limit %d",
			domain.ErrCapacityInvariant, eventID, tier, c.limit)
	}
	c.remaining++
	txFromContext(ctx).onRollback(func() {
		c.mu.Lock()
		c.remaining--
		c.mu.Unlock()
	})
	return nil
}

type registrationRepo struct{ s *Store }

func (r registrationRepo) Create(ctx context.Context, reg *domain.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(reg.EventID, reg.AttendeeID)
	if _, exists := r.s.regByPair[key]; exists {
		return domain.ErrDuplicateRegistration
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	cp := *reg
	r.s.registrations[reg.ID] = &cp
	r.s.regByPair[key] = reg.ID
	id := reg.ID
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		delete(r.s.registrations, id)
		delete(r.s.regByPair, key)
		r.s.mu.Unlock()
	})
	return nil
}

func (r registrationRepo) GetByID(_ context.Context, id string) (*domain.Registration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r registrationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Registration, error) {
	r.s.mu.RLock()
	_, ok := r.s.registrations[id]
	r.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := r.s.lockRow(ctx, "registration:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r registrationRepo) GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*domain.Registration, error) {
	r.s.mu.RLock()
	id, ok := r.s.regByPair[pairKey(eventID, attendeeID)]
	r.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r registrationRepo) filter(keep func(*domain.Registration) bool) []*domain.Registration {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Registration, 0)
	for _, reg := range r.s.registrations {
		if keep(reg) {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r registrationRepo) ListByEventID(_ context.Context, eventID string) ([]*domain.Registration, error) {
	return r.filter(func(reg *domain.Registration) bool { return reg.EventID == eventID }), nil
}

func (r registrationRepo) ListByEventIDPage(ctx context.Context, eventID string, p domain.PaginationParams) ([]*domain.Registration, int, error) {
	all, _ := r.ListByEventID(ctx, eventID)
	total := len(all)
	start := p.Offset()
	if start >= total {
		return []*domain.Registration{}, total, nil
	}
	end := total
	if p.PageSize > 0 && start+p.PageSize < total {
		end = start + p.PageSize
	}
	return all[start:end], total, nil
}

func (r registrationRepo) ListByAttendeeID(_ context.Context, attendeeID string) ([]*domain.Registration, error) {
	return r.filter(func(reg *domain.Registration) bool { return reg.AttendeeID == attendeeID }), nil
}

func (r registrationRepo) Update(ctx context.Context, reg *domain.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.registrations[reg.ID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := *cur
	*cur = *reg
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		*cur = prev
		r.s.mu.Unlock()
	})
	return nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.payments[p.RegistrationID]; exists {
		return fmt.Errorf("%w: registration %s already has a payment", domain.ErrInvalidStateTransition, p.RegistrationID)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.s.payments[p.RegistrationID] = &cp
	regID := p.RegistrationID
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		delete(r.s.payments, regID)
		r.s.mu.Unlock()
	})
	return nil
}

func (r paymentRepo) GetByRegistrationID(_ context.Context, registrationID string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[registrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.payments[p.RegistrationID]
	if !ok || cur.ID != p.ID {
		return domain.ErrNotFound
	}
	prev := *cur
	*cur = *p
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		*cur = prev
		r.s.mu.Unlock()
	})
	return nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[t.RegistrationID]; exists {
		return fmt.Errorf("%w: registration %s already has a ticket", domain.ErrInvalidStateTransition, t.RegistrationID)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	r.s.tickets[t.RegistrationID] = &cp
	regID := t.RegistrationID
	txFromContext(ctx).onRollback(func() {
		r.s.mu.Lock()
		delete(r.s.tickets, regID)
		r.s.mu.Unlock()
	})
	return nil
}

func (r ticketRepo) GetByRegistrationID(_ context.Context, registrationID string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[registrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r ticketRepo) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.ID != id {
			continue
		}
		prevStatus, prevUpdated := t.Status, t.UpdatedAt
		t.Status = status
		t.UpdatedAt = at
		tk := t
		txFromContext(ctx).onRollback(func() {
			r.s.mu.Lock()
			tk.Status, tk.UpdatedAt = prevStatus, prevUpdated
			r.s.mu.Unlock()
		})
		return nil
	}
	return domain.ErrNotFound
}
