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

type PayoutAccountRepository interface {
	FindByArtistID(ctx context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error)
	// Lock creates the artist's account row if missing and locks it for the
	// rest of the unit of work. Withdrawals serialize on it.
	Lock(ctx context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error)
	Upsert(ctx context.Context, account *entity.PayoutAccount) error
}

type payoutAccountRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPayoutAccountRepository(db database.Querier, log *zap.Logger) PayoutAccountRepository {
	return &payoutAccountRepository{
		db:  db,
		log: log.With(zap.String("repository", "payout_account")),
	}
}

func (r *payoutAccountRepository) FindByArtistID(ctx context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error) {
	query := `
		SELECT artist_id, account_ref, onboarded, created_at, updated_at
		FROM payout_accounts
		WHERE artist_id = $1
	`

	var a entity.PayoutAccount
	err := r.db.QueryRow(ctx, query, artistID).Scan(&a.ArtistID, &a.AccountRef, &a.Onboarded, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout account",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("find payout account of artist %s: %w", artistID.String(), err)
	}

	return &a, nil
}

func (r *payoutAccountRepository) Lock(ctx context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payout_accounts (artist_id) VALUES ($1)
		ON CONFLICT (artist_id) DO NOTHING
	`, artistID)
	if err != nil {
		r.log.Error("Failed to ensure payout account",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("ensure payout account of artist %s: %w", artistID.String(), err)
	}

	query := `
		SELECT artist_id, account_ref, onboarded, created_at, updated_at
		FROM payout_accounts
		WHERE artist_id = $1
		FOR UPDATE
	`

	var a entity.PayoutAccount
	err = r.db.QueryRow(ctx, query, artistID).Scan(&a.ArtistID, &a.AccountRef, &a.Onboarded, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to lock payout account",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("lock payout account of artist %s: %w", artistID.String(), err)
	}

	return &a, nil
}

func (r *payoutAccountRepository) Upsert(ctx context.Context, account *entity.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (artist_id, account_ref, onboarded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (artist_id) DO UPDATE
		SET account_ref = EXCLUDED.account_ref, onboarded = EXCLUDED.onboarded, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		account.ArtistID,
		account.AccountRef,
		account.Onboarded,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to upsert payout account",
			zap.Error(err),
			zap.String("artist_id", account.ArtistID.String()),
		)
		return fmt.Errorf("upsert payout account of artist %s: %w", account.ArtistID.String(), err)
	}

	return nil
}
