package usecase

import (
	"errors"
	"fmt"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/utils"
)

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAlreadyDecided      = errors.New("proposal already decided")
	ErrDuplicateProposal   = errors.New("artist already has an active proposal on this request")
	ErrRequestClosed       = errors.New("request is no longer open")
	ErrAmountMismatch      = errors.New("amount does not match the amount due")
	ErrInsufficientBalance = errors.New("insufficient withdrawable balance")
	ErrOnboardingRequired  = errors.New("payout onboarding required")
	ErrDuplicateCallback   = errors.New("callback already processed")
	ErrAuditWriteFailed    = errors.New("audit write failed")

	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrSettlementInFlight = errors.New("a payment settlement is in flight")
	ErrPaymentIncomplete  = errors.New("booking is not fully paid")
	ErrInvalidCallback    = errors.New("callback does not apply to current state")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrBookingNotPayable  = errors.New("booking does not accept this payment")
	ErrRequestKeyReused   = errors.New("request key already used for a different withdrawal")
)

type TransitionError struct {
	From entity.BookingStatus
	To   entity.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// OnboardingRequiredError is a redirect outcome, not a failure: the caller
// sends the artist to RedirectURL and retries the withdrawal afterwards.
type OnboardingRequiredError struct {
	RedirectURL string
}

func (e *OnboardingRequiredError) Error() string {
	return ErrOnboardingRequired.Error()
}

func (e *OnboardingRequiredError) Is(target error) bool {
	return target == ErrOnboardingRequired
}

type AmountMismatchError struct {
	Expected int64
	Got      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrAmountMismatch, e.Expected, e.Got)
}

func (e *AmountMismatchError) Is(target error) bool {
	return target == ErrAmountMismatch
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, utils.FormatValidationErrors(e.Fields))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validate(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// transition checks the booking graph and moves the booking to next.
func transition(b *entity.Booking, next entity.BookingStatus) error {
	if !entity.CanTransition(b.Status, next) {
		return &TransitionError{From: b.Status, To: next}
	}
	from := b.Status
	b.Status = next
	if !b.ArtistConsistent() {
		b.Status = from
		return fmt.Errorf("booking %s entering %s with artist %v: %w", b.ID, next, b.ArtistID != nil, ErrInvalidTransition)
	}
	return nil
}
