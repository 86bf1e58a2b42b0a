// Package memstore keeps every repository in process memory. Atomic units
// work on a private copy of the state which replaces the live state only
// when the unit succeeds, so a failed unit leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type state struct {
	bookings     map[uuid.UUID]*entity.Booking
	proposals    map[uuid.UUID]*entity.Proposal
	transactions []*entity.Transaction
	intents      map[uuid.UUID]*entity.PaymentIntent
	payouts      map[uuid.UUID]*entity.Payout
	accounts     map[uuid.UUID]*entity.PayoutAccount
	events       map[string]entity.GatewayEvent
	audit        []*entity.AuditLogEntry
	seq          int64
}

func newState() *state {
	return &state{
		bookings:  make(map[uuid.UUID]*entity.Booking),
		proposals: make(map[uuid.UUID]*entity.Proposal),
		intents:   make(map[uuid.UUID]*entity.PaymentIntent),
		payouts:   make(map[uuid.UUID]*entity.Payout),
		accounts:  make(map[uuid.UUID]*entity.PayoutAccount),
		events:    make(map[string]entity.GatewayEvent),
	}
}

// clone copies everything mutable. Ledger and audit entries are immutable
// once written so their pointers are shared.
func (s *state) clone() *state {
	c := newState()
	for id, b := range s.bookings {
		c.bookings[id] = b.Clone()
	}
	for id, p := range s.proposals {
		c.proposals[id] = p.Clone()
	}
	for id, i := range s.intents {
		c.intents[id] = i.Clone()
	}
	for id, p := range s.payouts {
		c.payouts[id] = p.Clone()
	}
	for id, a := range s.accounts {
		acc := *a
		c.accounts[id] = &acc
	}
	for ref, e := range s.events {
		c.events[ref] = e
	}
	c.transactions = append([]*entity.Transaction(nil), s.transactions...)
	c.audit = append([]*entity.AuditLogEntry(nil), s.audit...)
	c.seq = s.seq
	return c
}

type Store struct {
	mu       sync.Mutex
	st       *state
	auditErr error
	log      *zap.Logger
}

func New(log *zap.Logger) *Store {
	return &Store{
		st:  newState(),
		log: log.With(zap.String("repository", "memstore")),
	}
}

// FailAuditWrites makes every following audit write return err. Pass nil
// to restore normal behaviour.
func (s *Store) FailAuditWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditErr = err
}

// Repository returns repositories bound to the live state.
func (s *Store) Repository() *repository.Repository {
	repo := bind(binding{store: s})
	repo.Runner = s
	return repo
}

// Atomic implements repository.TxRunner.
func (s *Store) Atomic(ctx context.Context, fn func(repo *repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	repo := bind(binding{store: s, st: work})
	repo.Runner = repository.InlineRunner{Repo: repo}

	if err := fn(repo); err != nil {
		s.log.Debug("Unit of work rolled back", zap.Error(err))
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.st = work
	return nil
}

// binding resolves which state a repository reads and writes. A nil st
// means the live state, guarded by the store mutex.
type binding struct {
	store *Store
	st    *state
}

func (b binding) do(fn func(st *state) error) error {
	if b.st != nil {
		return fn(b.st)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func bind(b binding) *repository.Repository {
	return &repository.Repository{
		Booking:       &bookingRepo{b},
		Proposal:      &proposalRepo{b},
		Transaction:   &transactionRepo{b},
		PaymentIntent: &intentRepo{b},
		Payout:        &payoutRepo{b},
		PayoutAccount: &accountRepo{b},
		GatewayEvent:  &eventRepo{b},
		Audit:         &auditRepo{b},
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func newestFirst(bookings []*entity.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
}
