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

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	// FindByIDForUpdate locks the booking row until the enclosing unit of
	// work ends. Outside Atomic it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByClientID(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByClientID(ctx context.Context, clientID uuid.UUID) (int64, error)
	FindByArtistID(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByArtistID(ctx context.Context, artistID uuid.UUID) (int64, error)
	Update(ctx context.Context, booking *entity.Booking) error

	// Sweep queries
	FindDueToStart(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)
	FindDueToComplete(ctx context.Context, endedBefore time.Time, limit int) ([]*entity.Booking, error)
}

const bookingColumns = `id, client_id, artist_id, title, event_types, location, event_start, event_end,
	budget_min, budget_max, currency, deposit_mode, total_price, amount_paid, remaining_amount,
	refund_due, payment_status, status, cancellation_reason, version, created_at, updated_at`

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.ClientID,
		&b.ArtistID,
		&b.Title,
		&b.EventTypes,
		&b.Location,
		&b.EventStart,
		&b.EventEnd,
		&b.BudgetMin,
		&b.BudgetMax,
		&b.Currency,
		&b.DepositMode,
		&b.TotalPrice,
		&b.AmountPaid,
		&b.RemainingAmount,
		&b.RefundDue,
		&b.PaymentStatus,
		&b.Status,
		&b.CancellationReason,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	if booking.Version == 0 {
		booking.Version = 1
	}

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.ClientID,
		booking.ArtistID,
		booking.Title,
		booking.EventTypes,
		booking.Location,
		booking.EventStart,
		booking.EventEnd,
		booking.BudgetMin,
		booking.BudgetMax,
		booking.Currency,
		booking.DepositMode,
		booking.TotalPrice,
		booking.AmountPaid,
		booking.RemainingAmount,
		booking.RefundDue,
		booking.PaymentStatus,
		booking.Status,
		booking.CancellationReason,
		booking.Version,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("client_id", booking.ClientID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID.String(), classify(err))
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByClientID(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	bookings, err := r.findMany(ctx, query, clientID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by client ID",
			zap.Error(err),
			zap.String("client_id", clientID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by client ID %s: %w", clientID.String(), err)
	}

	return bookings, nil
}

func (r *bookingRepository) CountByClientID(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE client_id = $1`, clientID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by client ID",
			zap.Error(err),
			zap.String("client_id", clientID.String()),
		)
		return 0, fmt.Errorf("count bookings by client ID %s: %w", clientID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) FindByArtistID(ctx context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE artist_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	bookings, err := r.findMany(ctx, query, artistID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by artist ID",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("find bookings by artist ID %s: %w", artistID.String(), err)
	}

	return bookings, nil
}

func (r *bookingRepository) CountByArtistID(ctx context.Context, artistID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE artist_id = $1`, artistID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by artist ID",
			zap.Error(err),
			zap.String("artist_id", artistID.String()),
		)
		return 0, fmt.Errorf("count bookings by artist ID %s: %w", artistID.String(), err)
	}

	return count, nil
}

// Update writes the booking if its version still matches and bumps the
// version on success.
func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET artist_id = $3, title = $4, event_types = $5, location = $6, event_start = $7, event_end = $8,
		    budget_min = $9, budget_max = $10, deposit_mode = $11, total_price = $12, amount_paid = $13,
		    remaining_amount = $14, refund_due = $15, payment_status = $16, status = $17,
		    cancellation_reason = $18, updated_at = $19, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Version,
		booking.ArtistID,
		booking.Title,
		booking.EventTypes,
		booking.Location,
		booking.EventStart,
		booking.EventEnd,
		booking.BudgetMin,
		booking.BudgetMax,
		booking.DepositMode,
		booking.TotalPrice,
		booking.AmountPaid,
		booking.RemainingAmount,
		booking.RefundDue,
		booking.PaymentStatus,
		booking.Status,
		booking.CancellationReason,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update booking %s at version %d: %w", booking.ID.String(), booking.Version, ErrStale)
	}

	booking.Version++
	return nil
}

func (r *bookingRepository) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed' AND event_start <= $1
		ORDER BY event_start
		LIMIT $2
	`

	bookings, err := r.findMany(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find bookings due to start", zap.Error(err))
		return nil, fmt.Errorf("find bookings due to start: %w", err)
	}

	return bookings, nil
}

func (r *bookingRepository) FindDueToComplete(ctx context.Context, endedBefore time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'in_progress' AND event_end <= $1
		ORDER BY event_end
		LIMIT $2
	`

	bookings, err := r.findMany(ctx, query, endedBefore, limit)
	if err != nil {
		r.log.Error("Failed to find bookings due to complete", zap.Error(err))
		return nil, fmt.Errorf("find bookings due to complete: %w", err)
	}

	return bookings, nil
}

func (r *bookingRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}
