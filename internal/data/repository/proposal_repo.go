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

type ProposalRepository interface {
	Create(ctx context.Context, proposal *entity.Proposal) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Proposal, error)
	// FindActiveByArtist returns the artist's non-withdrawn proposal on a request, if any.
	FindActiveByArtist(ctx context.Context, bookingID, artistID uuid.UUID) (*entity.Proposal, error)
	// Decide persists a status change only if the proposal is still pending.
	// A proposal decided concurrently yields ErrStale.
	Decide(ctx context.Context, proposal *entity.Proposal) error
}

const proposalColumns = `id, booking_id, artist_id, price, duration_minutes, message, status,
	decision_reason, decided_at, created_at, updated_at`

type proposalRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewProposalRepository(db database.Querier, log *zap.Logger) ProposalRepository {
	return &proposalRepository{
		db:  db,
		log: log.With(zap.String("repository", "proposal")),
	}
}

func scanProposal(row pgx.Row) (*entity.Proposal, error) {
	var p entity.Proposal
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.ArtistID,
		&p.Price,
		&p.DurationMinutes,
		&p.Message,
		&p.Status,
		&p.DecisionReason,
		&p.DecidedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) Create(ctx context.Context, proposal *entity.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		proposal.ID,
		proposal.BookingID,
		proposal.ArtistID,
		proposal.Price,
		proposal.DurationMinutes,
		proposal.Message,
		proposal.Status,
		proposal.DecisionReason,
		proposal.DecidedAt,
		proposal.CreatedAt,
		proposal.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create proposal",
			zap.Error(err),
			zap.String("booking_id", proposal.BookingID.String()),
			zap.String("artist_id", proposal.ArtistID.String()),
		)
		return fmt.Errorf("create proposal for booking %s: %w", proposal.BookingID.String(), classify(err))
	}

	return nil
}

func (r *proposalRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	proposal, err := scanProposal(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find proposal by ID",
			zap.Error(err),
			zap.String("proposal_id", id.String()),
		)
		return nil, fmt.Errorf("find proposal by ID %s: %w", id.String(), err)
	}

	return proposal, nil
}

func (r *proposalRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE booking_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find proposals by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find proposals by booking ID %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var proposals []*entity.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			r.log.Error("Failed to scan proposal row", zap.Error(err))
			return nil, fmt.Errorf("scan proposal row: %w", err)
		}
		proposals = append(proposals, proposal)
	}

	return proposals, rows.Err()
}

func (r *proposalRepository) FindActiveByArtist(ctx context.Context, bookingID, artistID uuid.UUID) (*entity.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE booking_id = $1 AND artist_id = $2 AND status <> 'withdrawn'
		LIMIT 1
	`

	proposal, err := scanProposal(r.db.QueryRow(ctx, query, bookingID, artistID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active proposal",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("artist_id", artistID.String()),
		)
		return nil, fmt.Errorf("find active proposal of artist %s: %w", artistID.String(), err)
	}

	return proposal, nil
}

func (r *proposalRepository) Decide(ctx context.Context, proposal *entity.Proposal) error {
	query := `
		UPDATE proposals
		SET status = $2, decision_reason = $3, decided_at = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(ctx, query,
		proposal.ID,
		proposal.Status,
		proposal.DecisionReason,
		proposal.DecidedAt,
		proposal.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update proposal status",
			zap.Error(err),
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("status", string(proposal.Status)),
		)
		return fmt.Errorf("update proposal %s status to %s: %w", proposal.ID.String(), proposal.Status, classify(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s is no longer pending: %w", proposal.ID.String(), ErrStale)
	}

	return nil
}
