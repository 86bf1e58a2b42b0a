package entity

import (
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

type Proposal struct {
	Base
	BookingID       uuid.UUID      `db:"booking_id"`
	ArtistID        uuid.UUID      `db:"artist_id"`
	Price           int64          `db:"price"`
	DurationMinutes int            `db:"duration_minutes"`
	Message         string         `db:"message"`
	Status          ProposalStatus `db:"status"`
	DecisionReason  *string        `db:"decision_reason"`
	DecidedAt       *time.Time     `db:"decided_at"`
}

func (p *Proposal) IsPending() bool {
	return p.Status == ProposalStatusPending
}

// Decide moves a pending proposal to a final status.
func (p *Proposal) Decide(status ProposalStatus, reason *string, at time.Time) {
	p.Status = status
	p.DecisionReason = reason
	p.DecidedAt = &at
	p.UpdatedAt = at
}

func (p *Proposal) Snapshot() map[string]any {
	snap := map[string]any{
		"status": string(p.Status),
		"price":  p.Price,
	}
	if p.DecisionReason != nil {
		snap["decision_reason"] = *p.DecisionReason
	}
	return snap
}

func (p *Proposal) Clone() *Proposal {
	c := *p
	if p.DecisionReason != nil {
		r := *p.DecisionReason
		c.DecisionReason = &r
	}
	if p.DecidedAt != nil {
		t := *p.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
