package repository

import (
	"context"
	"fmt"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRepository is append-only: entries are never updated or deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditLogEntry, error)
}

type auditRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAuditRepository(db database.Querier, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log_entries (id, booking_id, action, actor_user_id, actor_role, actor_name,
			application_id, artist_id, previous_values, new_values, detail, status_at_time,
			correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq
	`

	err := r.db.QueryRow(ctx, query,
		entry.ID,
		entry.BookingID,
		entry.Action,
		entry.ActorUserID,
		entry.ActorRole,
		entry.ActorName,
		entry.ApplicationID,
		entry.ArtistID,
		entry.PreviousValues,
		entry.NewValues,
		entry.Detail,
		entry.StatusAtTime,
		entry.CorrelationID,
		entry.CreatedAt,
	).Scan(&entry.Seq)

	if err != nil {
		r.log.Error("Failed to write audit entry",
			zap.Error(err),
			zap.String("booking_id", entry.BookingID.String()),
			zap.String("action", string(entry.Action)),
		)
		return fmt.Errorf("write audit entry %s for booking %s: %w", entry.Action, entry.BookingID.String(), err)
	}

	return nil
}

func (r *auditRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, seq, booking_id, action, actor_user_id, actor_role, actor_name, application_id,
			artist_id, previous_values, new_values, detail, status_at_time, correlation_id, created_at
		FROM audit_log_entries
		WHERE booking_id = $1
		ORDER BY created_at, seq
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find audit entries",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find audit entries for booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var e entity.AuditLogEntry
		err := rows.Scan(
			&e.ID,
			&e.Seq,
			&e.BookingID,
			&e.Action,
			&e.ActorUserID,
			&e.ActorRole,
			&e.ActorName,
			&e.ApplicationID,
			&e.ArtistID,
			&e.PreviousValues,
			&e.NewValues,
			&e.Detail,
			&e.StatusAtTime,
			&e.CorrelationID,
			&e.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan audit row", zap.Error(err))
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
