package repository

import (
	"context"
	"errors"
	"fmt"

	"gig-booking/pkg/database"

	"go.uber.org/zap"
)

var (
	// ErrConflict is returned when a write hits a uniqueness rule
	// (external reference, request key, one accepted proposal).
	ErrConflict = errors.New("unique constraint violated")

	// ErrStale is returned when a conditional update matched no row
	// because the record changed underneath the caller.
	ErrStale = errors.New("record changed concurrently")
)

// TxRunner runs fn inside one atomic unit. Every write made through the
// Repository handed to fn commits or rolls back together.
type TxRunner interface {
	Atomic(ctx context.Context, fn func(repo *Repository) error) error
}

type Repository struct {
	Booking       BookingRepository
	Proposal      ProposalRepository
	Transaction   TransactionRepository
	PaymentIntent PaymentIntentRepository
	Payout        PayoutRepository
	PayoutAccount PayoutAccountRepository
	GatewayEvent  GatewayEventRepository
	Audit         AuditRepository

	Runner TxRunner
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newQuerierRepository(db, log)
	repo.Runner = &pgRunner{db: db, log: log.With(zap.String("repository", "tx"))}
	return repo
}

func newQuerierRepository(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Booking:       NewBookingRepository(q, log),
		Proposal:      NewProposalRepository(q, log),
		Transaction:   NewTransactionRepository(q, log),
		PaymentIntent: NewPaymentIntentRepository(q, log),
		Payout:        NewPayoutRepository(q, log),
		PayoutAccount: NewPayoutAccountRepository(q, log),
		GatewayEvent:  NewGatewayEventRepository(q, log),
		Audit:         NewAuditRepository(q, log),
	}
}

// Atomic runs fn in a single transaction. Calling Atomic on a repository
// that is already transaction-bound joins the open transaction.
func (r *Repository) Atomic(ctx context.Context, fn func(repo *Repository) error) error {
	return r.Runner.Atomic(ctx, fn)
}

type pgRunner struct {
	db  database.PgxIface
	log *zap.Logger
}

func (p *pgRunner) Atomic(ctx context.Context, fn func(repo *Repository) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		p.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	txRepo := newQuerierRepository(tx, p.log)
	txRepo.Runner = InlineRunner{Repo: txRepo}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		p.log.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// InlineRunner runs fn against an already open unit of work.
type InlineRunner struct {
	Repo *Repository
}

func (r InlineRunner) Atomic(_ context.Context, fn func(repo *Repository) error) error {
	return fn(r.Repo)
}

// classify maps driver-level uniqueness failures onto ErrConflict.
func classify(err error) error {
	if database.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
