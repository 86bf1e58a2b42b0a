package adaptor

import (
	"net/http"

	"gig-booking/internal/usecase"
	"gig-booking/pkg/utils"

	"go.uber.org/zap"
)

type AuditHandler struct {
	service usecase.AuditService
	log     *zap.Logger
}

func NewAuditHandler(service usecase.AuditService, log *zap.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		log:     log.With(zap.String("handler", "audit")),
	}
}

// GetHistory handles GET /api/bookings/{id}/audit
func (h *AuditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.service.GetAuditHistory(r.Context(), actor, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "get audit history")
		return
	}

	utils.ResponseSuccess(w, "success", entries)
}
