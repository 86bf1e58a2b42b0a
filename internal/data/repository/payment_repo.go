package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *entity.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentIntent, error)
	FindByGatewayRef(ctx context.Context, ref string) (*entity.PaymentIntent, error)
	FindPendingByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentIntent, error)
	Update(ctx context.Context, intent *entity.PaymentIntent) error
	// ExpireStale moves pending intents created before cutoff to expired
	// and returns them.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]*entity.PaymentIntent, error)
}

const intentColumns = `id, booking_id, kind, amount, currency, status, gateway_ref, created_at, updated_at`

type paymentIntentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentIntentRepository(db database.Querier, log *zap.Logger) PaymentIntentRepository {
	return &paymentIntentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_intent")),
	}
}

func scanIntent(row pgx.Row) (*entity.PaymentIntent, error) {
	var i entity.PaymentIntent
	err := row.Scan(
		&i.ID,
		&i.BookingID,
		&i.Kind,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.GatewayRef,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		intent.ID,
		intent.BookingID,
		intent.Kind,
		intent.Amount,
		intent.Currency,
		intent.Status,
		intent.GatewayRef,
		intent.CreatedAt,
		intent.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.String("booking_id", intent.BookingID.String()),
			zap.String("kind", string(intent.Kind)),
		)
		return fmt.Errorf("create payment intent for booking %s: %w", intent.BookingID.String(), classify(err))
	}

	return nil
}

func (r *paymentIntentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	intent, err := scanIntent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment intent by ID",
			zap.Error(err),
			zap.String("intent_id", id.String()),
		)
		return nil, fmt.Errorf("find payment intent by ID %s: %w", id.String(), err)
	}

	return intent, nil
}

func (r *paymentIntentRepository) FindByGatewayRef(ctx context.Context, ref string) (*entity.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE gateway_ref = $1`

	intent, err := scanIntent(r.db.QueryRow(ctx, query, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment intent by gateway ref",
			zap.Error(err),
			zap.String("gateway_ref", ref),
		)
		return nil, fmt.Errorf("find payment intent by gateway ref %s: %w", ref, err)
	}

	return intent, nil
}

func (r *paymentIntentRepository) FindPendingByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE booking_id = $1 AND status = 'pending'
		ORDER BY created_at
	`

	intents, err := r.findMany(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find pending payment intents",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find pending payment intents for booking %s: %w", bookingID.String(), err)
	}

	return intents, nil
}

func (r *paymentIntentRepository) Update(ctx context.Context, intent *entity.PaymentIntent) error {
	query := `
		UPDATE payment_intents
		SET status = $2, gateway_ref = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, intent.ID, intent.Status, intent.GatewayRef, intent.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to update payment intent",
			zap.Error(err),
			zap.String("intent_id", intent.ID.String()),
			zap.String("status", string(intent.Status)),
		)
		return fmt.Errorf("update payment intent %s: %w", intent.ID.String(), classify(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment intent %s not found", intent.ID.String())
	}

	return nil
}

func (r *paymentIntentRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]*entity.PaymentIntent, error) {
	query := `
		UPDATE payment_intents
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
		RETURNING ` + intentColumns

	intents, err := r.findMany(ctx, query, cutoff)
	if err != nil {
		r.log.Error("Failed to expire stale payment intents", zap.Error(err))
		return nil, fmt.Errorf("expire stale payment intents: %w", err)
	}

	return intents, nil
}

func (r *paymentIntentRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.PaymentIntent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*entity.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			r.log.Error("Failed to scan payment intent row", zap.Error(err))
			return nil, fmt.Errorf("scan payment intent row: %w", err)
		}
		intents = append(intents, intent)
	}

	return intents, rows.Err()
}
