package response

import (
	"time"

	"gig-booking/internal/data/entity"
)

type AuditActor struct {
	UserID *string `json:"user_id,omitempty"`
	Role   *string `json:"role,omitempty"`
	Name   *string `json:"name,omitempty"`
}

type AuditLogResponse struct {
	ID             string               `json:"id"`
	BookingID      string               `json:"booking_id"`
	Action         entity.AuditAction   `json:"action"`
	Actor          *AuditActor          `json:"actor,omitempty"`
	ApplicationID  *string              `json:"application_id,omitempty"`
	ArtistID       *string              `json:"artist_id,omitempty"`
	PreviousValues map[string]any       `json:"previous_values,omitempty"`
	NewValues      map[string]any       `json:"new_values,omitempty"`
	Detail         *string              `json:"detail,omitempty"`
	StatusAtTime   entity.BookingStatus `json:"status_at_time"`
	CorrelationID  string               `json:"correlation_id"`
	CreatedAt      time.Time            `json:"created_at"`
}

func AuditToResponse(e *entity.AuditLogEntry) AuditLogResponse {
	resp := AuditLogResponse{
		ID:             e.ID.String(),
		BookingID:      e.BookingID.String(),
		Action:         e.Action,
		PreviousValues: e.PreviousValues,
		NewValues:      e.NewValues,
		Detail:         e.Detail,
		StatusAtTime:   e.StatusAtTime,
		CorrelationID:  e.CorrelationID.String(),
		CreatedAt:      e.CreatedAt,
	}
	if e.ActorUserID != nil || e.ActorRole != nil || e.ActorName != nil {
		resp.Actor = &AuditActor{UserID: idString(e.ActorUserID), Role: e.ActorRole, Name: e.ActorName}
	}
	resp.ApplicationID = idString(e.ApplicationID)
	resp.ArtistID = idString(e.ArtistID)
	return resp
}
