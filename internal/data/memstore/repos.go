package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"

	"github.com/google/uuid"
)

// ==================== BOOKING ====================

type bookingRepo struct{ b binding }

func (r *bookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return fmt.Errorf("create booking %s: %w", booking.ID, repository.ErrConflict)
		}
		if booking.Version == 0 {
			booking.Version = 1
		}
		st.bookings[booking.ID] = booking.Clone()
		return nil
	})
}

func (r *bookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	var found *entity.Booking
	err := r.b.do(func(st *state) error {
		if b, ok := st.bookings[id]; ok {
			found = b.Clone()
		}
		return nil
	})
	return found, err
}

func (r *bookingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *bookingRepo) filter(match func(*entity.Booking) bool) []*entity.Booking {
	var out []*entity.Booking
	_ = r.b.do(func(st *state) error {
		for _, b := range st.bookings {
			if match(b) {
				out = append(out, b.Clone())
			}
		}
		return nil
	})
	return out
}

func (r *bookingRepo) FindByClientID(_ context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	out := r.filter(func(b *entity.Booking) bool { return b.ClientID == clientID })
	newestFirst(out)
	return page(out, limit, offset), nil
}

func (r *bookingRepo) CountByClientID(_ context.Context, clientID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(b *entity.Booking) bool { return b.ClientID == clientID }))), nil
}

func (r *bookingRepo) FindByArtistID(_ context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	out := r.filter(func(b *entity.Booking) bool { return b.ArtistID != nil && *b.ArtistID == artistID })
	newestFirst(out)
	return page(out, limit, offset), nil
}

func (r *bookingRepo) CountByArtistID(_ context.Context, artistID uuid.UUID) (int64, error) {
	out := r.filter(func(b *entity.Booking) bool { return b.ArtistID != nil && *b.ArtistID == artistID })
	return int64(len(out)), nil
}

func (r *bookingRepo) Update(_ context.Context, booking *entity.Booking) error {
	return r.b.do(func(st *state) error {
		current, ok := st.bookings[booking.ID]
		if !ok {
			return fmt.Errorf("booking %s not found", booking.ID)
		}
		if current.Version != booking.Version {
			return fmt.Errorf("update booking %s at version %d: %w", booking.ID, booking.Version, repository.ErrStale)
		}
		booking.Version++
		st.bookings[booking.ID] = booking.Clone()
		return nil
	})
}

func (r *bookingRepo) FindDueToStart(_ context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	out := r.filter(func(b *entity.Booking) bool {
		return b.Status == entity.BookingStatusConfirmed && !b.EventStart.After(now)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventStart.Before(out[j].EventStart) })
	return page(out, limit, 0), nil
}

func (r *bookingRepo) FindDueToComplete(_ context.Context, endedBefore time.Time, limit int) ([]*entity.Booking, error) {
	out := r.filter(func(b *entity.Booking) bool {
		return b.Status == entity.BookingStatusInProgress && !b.EventEnd.After(endedBefore)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventEnd.Before(out[j].EventEnd) })
	return page(out, limit, 0), nil
}

// ==================== PROPOSAL ====================

type proposalRepo struct{ b binding }

func (r *proposalRepo) Create(_ context.Context, proposal *entity.Proposal) error {
	return r.b.do(func(st *state) error {
		for _, p := range st.proposals {
			if p.BookingID == proposal.BookingID && p.ArtistID == proposal.ArtistID && p.Status != entity.ProposalStatusWithdrawn {
				return fmt.Errorf("create proposal for booking %s: %w", proposal.BookingID, repository.ErrConflict)
			}
		}
		st.proposals[proposal.ID] = proposal.Clone()
		return nil
	})
}

func (r *proposalRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Proposal, error) {
	var found *entity.Proposal
	err := r.b.do(func(st *state) error {
		if p, ok := st.proposals[id]; ok {
			found = p.Clone()
		}
		return nil
	})
	return found, err
}

func (r *proposalRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.Proposal, error) {
	var out []*entity.Proposal
	err := r.b.do(func(st *state) error {
		for _, p := range st.proposals {
			if p.BookingID == bookingID {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *proposalRepo) FindActiveByArtist(_ context.Context, bookingID, artistID uuid.UUID) (*entity.Proposal, error) {
	var found *entity.Proposal
	err := r.b.do(func(st *state) error {
		for _, p := range st.proposals {
			if p.BookingID == bookingID && p.ArtistID == artistID && p.Status != entity.ProposalStatusWithdrawn {
				found = p.Clone()
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *proposalRepo) Decide(_ context.Context, proposal *entity.Proposal) error {
	return r.b.do(func(st *state) error {
		current, ok := st.proposals[proposal.ID]
		if !ok || current.Status != entity.ProposalStatusPending {
			return fmt.Errorf("proposal %s is no longer pending: %w", proposal.ID, repository.ErrStale)
		}
		if proposal.Status == entity.ProposalStatusAccepted {
			for _, p := range st.proposals {
				if p.BookingID == proposal.BookingID && p.Status == entity.ProposalStatusAccepted {
					return fmt.Errorf("accept proposal %s: %w", proposal.ID, repository.ErrConflict)
				}
			}
		}
		st.proposals[proposal.ID] = proposal.Clone()
		return nil
	})
}

// ==================== TRANSACTION ====================

type transactionRepo struct{ b binding }

func (r *transactionRepo) Create(_ context.Context, tx *entity.Transaction) error {
	return r.b.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.ExternalRef == tx.ExternalRef {
				return fmt.Errorf("create transaction %s: %w", tx.ExternalRef, repository.ErrConflict)
			}
		}
		c := *tx
		st.transactions = append(st.transactions, &c)
		return nil
	})
}

func (r *transactionRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	err := r.b.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.BookingID == bookingID {
				c := *t
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *transactionRepo) FindByExternalRef(_ context.Context, ref string) (*entity.Transaction, error) {
	var found *entity.Transaction
	err := r.b.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.ExternalRef == ref {
				c := *t
				found = &c
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *transactionRepo) TotalsForArtist(_ context.Context, artistID uuid.UUID) (repository.ArtistTotals, error) {
	var totals repository.ArtistTotals
	err := r.b.do(func(st *state) error {
		for _, t := range st.transactions {
			b, ok := st.bookings[t.BookingID]
			if !ok || b.ArtistID == nil || *b.ArtistID != artistID {
				continue
			}
			completed := b.Status == entity.BookingStatusCompleted

			var net int64
			switch {
			case t.Type.IsPayIn():
				net = t.Amount
			case t.Type == entity.TransactionRefund:
				net = -t.Amount
			case t.Type == entity.TransactionAdminFee && completed:
				totals.Fees += t.Amount
			}
			totals.Gross += net
			if completed {
				totals.Released += net
			}
		}
		return nil
	})
	return totals, err
}

// ==================== PAYMENT INTENT ====================

type intentRepo struct{ b binding }

func (r *intentRepo) Create(_ context.Context, intent *entity.PaymentIntent) error {
	return r.b.do(func(st *state) error {
		st.intents[intent.ID] = intent.Clone()
		return nil
	})
}

func (r *intentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.PaymentIntent, error) {
	var found *entity.PaymentIntent
	err := r.b.do(func(st *state) error {
		if i, ok := st.intents[id]; ok {
			found = i.Clone()
		}
		return nil
	})
	return found, err
}

func (r *intentRepo) FindByGatewayRef(_ context.Context, ref string) (*entity.PaymentIntent, error) {
	var found *entity.PaymentIntent
	err := r.b.do(func(st *state) error {
		for _, i := range st.intents {
			if i.GatewayRef != nil && *i.GatewayRef == ref {
				found = i.Clone()
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *intentRepo) FindPendingByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.PaymentIntent, error) {
	var out []*entity.PaymentIntent
	err := r.b.do(func(st *state) error {
		for _, i := range st.intents {
			if i.BookingID == bookingID && i.Status == entity.IntentStatusPending {
				out = append(out, i.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *intentRepo) Update(_ context.Context, intent *entity.PaymentIntent) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.intents[intent.ID]; !ok {
			return fmt.Errorf("payment intent %s not found", intent.ID)
		}
		st.intents[intent.ID] = intent.Clone()
		return nil
	})
}

func (r *intentRepo) ExpireStale(_ context.Context, cutoff time.Time) ([]*entity.PaymentIntent, error) {
	var out []*entity.PaymentIntent
	err := r.b.do(func(st *state) error {
		now := time.Now()
		for _, i := range st.intents {
			if i.Status == entity.IntentStatusPending && i.CreatedAt.Before(cutoff) {
				i.Status = entity.IntentStatusExpired
				i.UpdatedAt = now
				out = append(out, i.Clone())
			}
		}
		return nil
	})
	return out, err
}

// ==================== PAYOUT ====================

type payoutRepo struct{ b binding }

func (r *payoutRepo) Create(_ context.Context, payout *entity.Payout) error {
	return r.b.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.ArtistID == payout.ArtistID && p.RequestKey == payout.RequestKey {
				return fmt.Errorf("create payout %s: %w", payout.RequestKey, repository.ErrConflict)
			}
		}
		st.payouts[payout.ID] = payout.Clone()
		return nil
	})
}

func (r *payoutRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payout, error) {
	var found *entity.Payout
	err := r.b.do(func(st *state) error {
		if p, ok := st.payouts[id]; ok {
			found = p.Clone()
		}
		return nil
	})
	return found, err
}

func (r *payoutRepo) FindByRequestKey(_ context.Context, artistID uuid.UUID, key string) (*entity.Payout, error) {
	var found *entity.Payout
	err := r.b.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.ArtistID == artistID && p.RequestKey == key {
				found = p.Clone()
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *payoutRepo) FindByArtistID(_ context.Context, artistID uuid.UUID, limit, offset int) ([]*entity.Payout, error) {
	var out []*entity.Payout
	err := r.b.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.ArtistID == artistID {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), err
}

func (r *payoutRepo) Update(_ context.Context, payout *entity.Payout) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.payouts[payout.ID]; !ok {
			return fmt.Errorf("payout %s not found", payout.ID)
		}
		st.payouts[payout.ID] = payout.Clone()
		return nil
	})
}

func (r *payoutRepo) TotalsForArtist(_ context.Context, artistID uuid.UUID) (repository.PayoutTotals, error) {
	var totals repository.PayoutTotals
	err := r.b.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.ArtistID != artistID {
				continue
			}
			switch p.Status {
			case entity.PayoutStatusPending:
				totals.Pending += p.Amount
			case entity.PayoutStatusPaid:
				totals.Paid += p.Amount
			}
		}
		return nil
	})
	return totals, err
}

// ==================== PAYOUT ACCOUNT ====================

type accountRepo struct{ b binding }

func (r *accountRepo) FindByArtistID(_ context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error) {
	var found *entity.PayoutAccount
	err := r.b.do(func(st *state) error {
		if a, ok := st.accounts[artistID]; ok {
			c := *a
			found = &c
		}
		return nil
	})
	return found, err
}

func (r *accountRepo) Lock(_ context.Context, artistID uuid.UUID) (*entity.PayoutAccount, error) {
	var found entity.PayoutAccount
	err := r.b.do(func(st *state) error {
		a, ok := st.accounts[artistID]
		if !ok {
			now := time.Now()
			a = &entity.PayoutAccount{ArtistID: artistID, CreatedAt: now, UpdatedAt: now}
			st.accounts[artistID] = a
		}
		found = *a
		return nil
	})
	return &found, err
}

func (r *accountRepo) Upsert(_ context.Context, account *entity.PayoutAccount) error {
	return r.b.do(func(st *state) error {
		c := *account
		if existing, ok := st.accounts[account.ArtistID]; ok {
			c.CreatedAt = existing.CreatedAt
		}
		st.accounts[account.ArtistID] = &c
		return nil
	})
}

// ==================== GATEWAY EVENT ====================

type eventRepo struct{ b binding }

func (r *eventRepo) Claim(_ context.Context, event *entity.GatewayEvent) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.events[event.ExternalRef]; ok {
			return fmt.Errorf("gateway event %s: %w", event.ExternalRef, repository.ErrConflict)
		}
		st.events[event.ExternalRef] = *event
		return nil
	})
}

// ==================== AUDIT ====================

type auditRepo struct{ b binding }

func (r *auditRepo) Create(_ context.Context, entry *entity.AuditLogEntry) error {
	return r.b.do(func(st *state) error {
		if r.b.store.auditErr != nil {
			return fmt.Errorf("write audit entry %s for booking %s: %w", entry.Action, entry.BookingID, r.b.store.auditErr)
		}
		st.seq++
		entry.Seq = st.seq
		c := *entry
		st.audit = append(st.audit, &c)
		return nil
	})
}

func (r *auditRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.AuditLogEntry, error) {
	var out []*entity.AuditLogEntry
	err := r.b.do(func(st *state) error {
		for _, e := range st.audit {
			if e.BookingID == bookingID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}
