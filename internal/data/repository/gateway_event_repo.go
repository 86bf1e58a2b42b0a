package repository

import (
	"context"
	"fmt"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/database"

	"go.uber.org/zap"
)

type GatewayEventRepository interface {
	// Claim records the external reference as processed. A reference that
	// was already claimed yields ErrConflict.
	Claim(ctx context.Context, event *entity.GatewayEvent) error
}

type gatewayEventRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewGatewayEventRepository(db database.Querier, log *zap.Logger) GatewayEventRepository {
	return &gatewayEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "gateway_event")),
	}
}

func (r *gatewayEventRepository) Claim(ctx context.Context, event *entity.GatewayEvent) error {
	result, err := r.db.Exec(ctx, `
		INSERT INTO gateway_events (external_ref, event_type)
		VALUES ($1, $2)
		ON CONFLICT (external_ref) DO NOTHING
	`, event.ExternalRef, event.EventType)
	if err != nil {
		r.log.Error("Failed to claim gateway event",
			zap.Error(err),
			zap.String("external_ref", event.ExternalRef),
		)
		return fmt.Errorf("claim gateway event %s: %w", event.ExternalRef, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("gateway event %s: %w", event.ExternalRef, ErrConflict)
	}

	return nil
}
