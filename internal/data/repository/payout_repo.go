package repository

import (
	"context"
	"errors"
	"fmt"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PayoutTotals splits an artist's payouts by whether they are settled.
type PayoutTotals struct {
	Pending int64
	Paid    int64
}

type PayoutRepository interface {
	// Create reserves funds. A reused (artist, request key) pair yields ErrConflict.
	Create(ctx context.Context, payout *entity.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error)
	FindByRequestKey(ctx context.Context, artistID uuid.UUID, key string) (*entity.Payout, error)
	FindByArtistID(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Payout, error)
	Update(ctx context.Context, payout *entity.Payout) error
	TotalsForArtist(ctx context.Context, artistID uuid.UUID) (PayoutTotals, error)
}

const payoutColumns = `id, artist_id, amount, currency, status, request_key, gateway_ref, failure_reason, created_at, updated_at`

type payoutRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPayoutRepository(db database.Querier, log *zap.Logger) PayoutRepository {
	return &payoutRepository{
		db:  db,
		log: log.With(zap.String("repository", "payout")),
	}
}

func scanPayout(row pgx.Row) (*entity.Payout, error) {
	var p entity.Payout
	err := row.Scan(
		&p.ID,
		&p.ArtistID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.RequestKey,
		&p.GatewayRef,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRepository) Create(ctx context.Context, payout *entity.Payout) error {
	query := `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		payout.ID,
		payout.ArtistID,
		payout.Amount,
		payout.Currency,
		payout.Status,
		payout.RequestKey,
		payout.GatewayRef,
		payout.FailureReason,
		payout.CreatedAt,
		payout.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payout",
			zap.Error(err),
			zap.String("artist_id", payout.ArtistID.String()),
			zap.String("request_key", payout.RequestKey),
		)
		return fmt.Errorf("create payout %s: %w", payout.RequestKey, classify(err))
	}

	return nil
}

func (r *payoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

	payout, err := scanPayout(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout by ID",
			zap.Error(err),
			zap.String("payout_id", id.String()),
		)
		return nil, fmt.Errorf("find payout by ID %s: %w", id.String(), err)
	}

	return payout, nil
}

func (r *payoutRepository) FindByRequestKey(ctx context.Context, artistID uuid.UUID, key string) (*entity.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE artist_id = $1 AND request_key = $2`

	payout, err := scanPayout(r.db.QueryRow(ctx, query, artistID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout by request key",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
			zap.String("request_key", key),
		)
		return nil, fmt.Errorf("find payout by request key %s: %w", key, err)
	}

	return payout, nil
}

func (r *payoutRepository) FindByArtistID(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE artist_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, artistID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find payouts by artist ID",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("find payouts by artist ID %s: %w", artistID.String(), err)
	}
	defer rows.Close()

	var payouts []*entity.Payout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			r.log.Error("Failed to scan payout row", zap.Error(err))
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, payout)
	}

	return payouts, rows.Err()
}

func (r *payoutRepository) Update(ctx context.Context, payout *entity.Payout) error {
	query := `
		UPDATE payouts
		SET status = $2, gateway_ref = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		payout.ID,
		payout.Status,
		payout.GatewayRef,
		payout.FailureReason,
		payout.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update payout",
			zap.Error(err),
			zap.String("payout_id", payout.ID.String()),
			zap.String("status", string(payout.Status)),
		)
		return fmt.Errorf("update payout %s: %w", payout.ID.String(), classify(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payout %s not found", payout.ID.String())
	}

	return nil
}

func (r *payoutRepository) TotalsForArtist(ctx context.Context, artistID uuid.UUID) (PayoutTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0)
		FROM payouts
		WHERE artist_id = $1
	`

	var totals PayoutTotals
	if err := r.db.QueryRow(ctx, query, artistID).Scan(&totals.Pending, &totals.Paid); err != nil {
		r.log.Error("Failed to total payouts for artist",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return PayoutTotals{}, fmt.Errorf("total payouts for artist %s: %w", artistID.String(), err)
	}

	return totals, nil
}
