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

// ArtistTotals is the ledger folded for one artist.
type ArtistTotals struct {
	Gross    int64 // net paid in across all bookings assigned to the artist
	Released int64 // net paid in on completed bookings
	Fees     int64 // platform fees charged on completed bookings
}

type TransactionRepository interface {
	// Create appends a ledger entry. A reused external reference yields ErrConflict.
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (*entity.Transaction, error)
	TotalsForArtist(ctx context.Context, artistID uuid.UUID) (ArtistTotals, error)
}

const transactionColumns = `id, booking_id, sender_id, receiver_id, type, amount, currency, external_ref, created_at`

type transactionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTransactionRepository(db database.Querier, log *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "transaction")),
	}
}

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(
		&t.ID,
		&t.BookingID,
		&t.SenderID,
		&t.ReceiverID,
		&t.Type,
		&t.Amount,
		&t.Currency,
		&t.ExternalRef,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.BookingID,
		tx.SenderID,
		tx.ReceiverID,
		tx.Type,
		tx.Amount,
		tx.Currency,
		tx.ExternalRef,
		tx.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create transaction",
			zap.Error(err),
			zap.String("booking_id", tx.BookingID.String()),
			zap.String("external_ref", tx.ExternalRef),
			zap.String("type", string(tx.Type)),
		)
		return fmt.Errorf("create transaction %s: %w", tx.ExternalRef, classify(err))
	}

	return nil
}

func (r *transactionRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE booking_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find transactions by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find transactions by booking ID %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var txs []*entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.log.Error("Failed to scan transaction row", zap.Error(err))
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func (r *transactionRepository) FindByExternalRef(ctx context.Context, ref string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_ref = $1`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction by external ref",
			zap.Error(err),
			zap.String("external_ref", ref),
		)
		return nil, fmt.Errorf("find transaction by external ref %s: %w", ref, err)
	}

	return t, nil
}

func (r *transactionRepository) TotalsForArtist(ctx context.Context, artistID uuid.UUID) (ArtistTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE
				WHEN t.type IN ('half-deposit', 'full-deposit', 'remaining') THEN t.amount
				WHEN t.type = 'refund' THEN -t.amount
				ELSE 0 END), 0),
			COALESCE(SUM(CASE
				WHEN b.status <> 'completed' THEN 0
				WHEN t.type IN ('half-deposit', 'full-deposit', 'remaining') THEN t.amount
				WHEN t.type = 'refund' THEN -t.amount
				ELSE 0 END), 0),
			COALESCE(SUM(CASE
				WHEN b.status = 'completed' AND t.type = 'admin-fee' THEN t.amount
				ELSE 0 END), 0)
		FROM transactions t
		JOIN bookings b ON b.id = t.booking_id
		WHERE b.artist_id = $1
	`

	var totals ArtistTotals
	err := r.db.QueryRow(ctx, query, artistID).Scan(&totals.Gross, &totals.Released, &totals.Fees)
	if err != nil {
		r.log.Error("Failed to total ledger for artist",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return ArtistTotals{}, fmt.Errorf("total ledger for artist %s: %w", artistID.String(), err)
	}

	return totals, nil
}
