package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/dto/response"
	"gig-booking/internal/gateway"
	"gig-booking/pkg/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const withdrawGuardTTL = 30 * time.Second

type WalletService interface {
	GetWallet(ctx context.Context, actor entity.Actor) (*response.WalletResponse, error)
	WithdrawFunds(ctx context.Context, actor entity.Actor, req *request.WithdrawRequest) (*response.PayoutResponse, error)
	ListPayouts(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) ([]response.PayoutResponse, error)
}

type walletService struct {
	*engine
	guard cache.Guard
	log   *zap.Logger
}

func NewWalletService(e *engine, guard cache.Guard, log *zap.Logger) WalletService {
	return &walletService{
		engine: e,
		guard:  guard,
		log:    log.With(zap.String("service", "wallet")),
	}
}

func (s *walletService) GetWallet(ctx context.Context, actor entity.Actor) (*response.WalletResponse, error) {
	if actor.Role != entity.RoleArtist {
		return nil, fmt.Errorf("wallet: %w", ErrForbidden)
	}

	wallet, err := s.derive(ctx, s.repo, actor.UserID)
	if err != nil {
		s.log.Error("Failed to derive wallet", zap.Error(err), zap.String("artist_id", actor.UserID.String()))
		return nil, err
	}

	account, err := s.repo.PayoutAccount.FindByArtistID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("find payout account: %w", err)
	}
	wallet.PayoutsEnabled = account.Ready()
	if !wallet.PayoutsEnabled {
		wallet.OnboardingURL = s.gateway.OnboardingURL(actor.UserID)
	}

	resp := response.WalletToResponse(wallet)
	return &resp, nil
}

// derive computes the wallet from the ledger and payout reservations.
// Nothing about the balance is stored.
func (s *walletService) derive(ctx context.Context, repo *repository.Repository, artistID uuid.UUID) (*entity.Wallet, error) {
	totals, err := repo.Transaction.TotalsForArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	payouts, err := repo.Payout.TotalsForArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("payout totals: %w", err)
	}

	withdrawn := payouts.Pending + payouts.Paid
	return &entity.Wallet{
		ArtistID:     artistID,
		Currency:     s.config.Gateway.Currency,
		Gross:        totals.Gross,
		Released:     totals.Released,
		Fees:         totals.Fees,
		Withdrawn:    withdrawn,
		Pending:      payouts.Pending,
		Withdrawable: max(totals.Released-totals.Fees-withdrawn, 0),
	}, nil
}

func (s *walletService) WithdrawFunds(ctx context.Context, actor entity.Actor, req *request.WithdrawRequest) (*response.PayoutResponse, error) {
	if actor.Role != entity.RoleArtist {
		return nil, fmt.Errorf("withdraw: %w", ErrForbidden)
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	guardKey := actor.UserID.String() + ":" + req.RequestKey
	acquired, err := s.guard.Acquire(ctx, guardKey, withdrawGuardTTL)
	if err != nil {
		// the request key is unique in the database as well
		s.log.Warn("Withdrawal guard unavailable", zap.Error(err))
		acquired = true
	}
	if !acquired {
		existing, err := s.repo.Payout.FindByRequestKey(ctx, actor.UserID, req.RequestKey)
		if err != nil {
			return nil, fmt.Errorf("find payout: %w", err)
		}
		if existing != nil {
			if err := sameWithdrawal(existing, req); err != nil {
				return nil, err
			}
			resp := response.PayoutToResponse(existing)
			return &resp, nil
		}
		return nil, fmt.Errorf("withdrawal %s: %w", req.RequestKey, ErrSettlementInFlight)
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), guardKey); err != nil {
			s.log.Warn("Failed to release withdrawal guard", zap.Error(err))
		}
	}()

	var (
		payout     *entity.Payout
		accountRef string
		created    bool
	)

	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		account, err := tx.PayoutAccount.Lock(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("lock payout account: %w", err)
		}

		existing, err := tx.Payout.FindByRequestKey(ctx, actor.UserID, req.RequestKey)
		if err != nil {
			return fmt.Errorf("find payout: %w", err)
		}
		if existing != nil {
			payout = existing
			return sameWithdrawal(existing, req)
		}

		wallet, err := s.derive(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if req.Amount > wallet.Withdrawable {
			return fmt.Errorf("withdraw %d with %d available: %w", req.Amount, wallet.Withdrawable, ErrInsufficientBalance)
		}

		if !account.Ready() {
			return &OnboardingRequiredError{RedirectURL: s.gateway.OnboardingURL(actor.UserID)}
		}

		now := time.Now().UTC()
		payout = &entity.Payout{
			Base:       entity.NewBase(now),
			ArtistID:   actor.UserID,
			Amount:     req.Amount,
			Currency:   wallet.Currency,
			Status:     entity.PayoutStatusPending,
			RequestKey: req.RequestKey,
		}
		if err := tx.Payout.Create(ctx, payout); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("withdrawal %s: %w", req.RequestKey, ErrSettlementInFlight)
			}
			return fmt.Errorf("reserve payout: %w", err)
		}

		accountRef = account.AccountRef
		created = true
		return nil
	})
	if err != nil {
		var onboarding *OnboardingRequiredError
		switch {
		case errors.As(err, &onboarding):
			s.log.Info("Withdrawal needs onboarding", zap.String("artist_id", actor.UserID.String()))
		case errors.Is(err, ErrInsufficientBalance):
			s.log.Warn("Withdrawal exceeds balance", zap.Error(err), zap.String("artist_id", actor.UserID.String()))
		}
		return nil, err
	}

	if !created {
		resp := response.PayoutToResponse(payout)
		return &resp, nil
	}

	ref, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		PayoutID:   payout.ID,
		ArtistID:   actor.UserID,
		AccountRef: accountRef,
		Amount:     payout.Amount,
		Currency:   payout.Currency,
	})
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		// funds stay reserved until the payout callback settles it
		s.log.Warn("Gateway timed out creating payout",
			zap.String("payout_id", payout.ID.String()),
			zap.String("artist_id", actor.UserID.String()),
		)

	case err != nil:
		reason := err.Error()
		payout.Status = entity.PayoutStatusFailed
		payout.FailureReason = &reason
		payout.UpdatedAt = time.Now().UTC()
		if uerr := s.repo.Payout.Update(ctx, payout); uerr != nil {
			s.log.Error("Failed to release payout reservation", zap.Error(uerr), zap.String("payout_id", payout.ID.String()))
		}
		return nil, fmt.Errorf("create payout: %w: %v", ErrGatewayUnavailable, err)

	default:
		payout.GatewayRef = &ref
		payout.UpdatedAt = time.Now().UTC()
		if err := s.repo.Payout.Update(ctx, payout); err != nil {
			s.log.Error("Failed to store payout reference",
				zap.Error(err),
				zap.String("payout_id", payout.ID.String()),
				zap.String("gateway_ref", ref),
			)
		}
	}

	s.log.Info("Withdrawal requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("artist_id", actor.UserID.String()),
		zap.Int64("amount", payout.Amount),
		zap.String("status", string(payout.Status)),
	)

	resp := response.PayoutToResponse(payout)
	return &resp, nil
}

// sameWithdrawal lets a replayed request key through only when it asks for
// what the first request asked for.
func sameWithdrawal(existing *entity.Payout, req *request.WithdrawRequest) error {
	if existing.Amount != req.Amount {
		return fmt.Errorf("withdrawal %s was for %d, not %d: %w", req.RequestKey, existing.Amount, req.Amount, ErrRequestKeyReused)
	}
	return nil
}

func (s *walletService) ListPayouts(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) ([]response.PayoutResponse, error) {
	if actor.Role != entity.RoleArtist {
		return nil, fmt.Errorf("payouts: %w", ErrForbidden)
	}

	payouts, err := s.repo.Payout.FindByArtistID(ctx, actor.UserID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list payouts", zap.Error(err), zap.String("artist_id", actor.UserID.String()))
		return nil, fmt.Errorf("list payouts: %w", err)
	}

	out := make([]response.PayoutResponse, len(payouts))
	for i, p := range payouts {
		out[i] = response.PayoutToResponse(p)
	}
	return out, nil
}
