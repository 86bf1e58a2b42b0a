package entity

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreated              AuditAction = "created"
	AuditUpdated              AuditAction = "updated"
	AuditCancelled            AuditAction = "cancelled"
	AuditDeleted              AuditAction = "deleted"
	AuditStatusChanged        AuditAction = "status-changed"
	AuditArtistApplied        AuditAction = "artist-applied"
	AuditApplicationAccepted  AuditAction = "application-accepted"
	AuditApplicationDeclined  AuditAction = "application-declined"
	AuditApplicationWithdrawn AuditAction = "application-withdrawn"
	AuditApplicationCancelled AuditAction = "application-cancelled"
	AuditCompleted            AuditAction = "completed"
)

// AuditLogEntry is write-once. Seq is assigned by the store and breaks
// ties between entries written in the same instant.
type AuditLogEntry struct {
	ID             uuid.UUID      `db:"id"`
	Seq            int64          `db:"seq"`
	BookingID      uuid.UUID      `db:"booking_id"`
	Action         AuditAction    `db:"action"`
	ActorUserID    *uuid.UUID     `db:"actor_user_id"`
	ActorRole      *string        `db:"actor_role"`
	ActorName      *string        `db:"actor_name"`
	ApplicationID  *uuid.UUID     `db:"application_id"`
	ArtistID       *uuid.UUID     `db:"artist_id"`
	PreviousValues map[string]any `db:"previous_values"`
	NewValues      map[string]any `db:"new_values"`
	Detail         *string        `db:"detail"`
	StatusAtTime   BookingStatus  `db:"status_at_time"`
	CorrelationID  uuid.UUID      `db:"correlation_id"`
	CreatedAt      time.Time      `db:"created_at"`
}
