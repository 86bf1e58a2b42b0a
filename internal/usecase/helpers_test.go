package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/memstore"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/dto/response"
	"gig-booking/internal/gateway"
	"gig-booking/internal/notifier"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGateway struct {
	mu        sync.Mutex
	seq       int
	intentErr error
	payoutErr error
	refunds   []gateway.RefundRequest
	payouts   []gateway.PayoutRequest
}

func (g *stubGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *stubGateway) CreatePaymentIntent(_ context.Context, _ gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	return &gateway.PaymentOrder{GatewayRef: g.next("order")}, nil
}

func (g *stubGateway) RequestRefund(_ context.Context, req gateway.RefundRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return g.next("rfnd"), nil
}

func (g *stubGateway) CreatePayout(_ context.Context, req gateway.PayoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payoutErr != nil {
		return "", g.payoutErr
	}
	g.payouts = append(g.payouts, req)
	return g.next("trf"), nil
}

func (g *stubGateway) OnboardingURL(artistID uuid.UUID) string {
	return "https://onboarding.test/" + artistID.String()
}

func (g *stubGateway) refundTotal() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total int64
	for _, r := range g.refunds {
		total += r.Amount
	}
	return total
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, event notifier.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type harness struct {
	ctx   context.Context
	store *memstore.Store
	repo  *repository.Repository
	svc   *Service
	gw    *stubGateway
	notes *mockNotifier

	client   entity.Actor
	artist   entity.Actor
	rival    entity.Actor
	admin    entity.Actor
	stranger entity.Actor
}

func testConfig() *utils.Config {
	return &utils.Config{
		Gateway: utils.GatewayConfig{Currency: "INR"},
		Engine: utils.EngineConfig{
			PlatformFeePercent: 10,
			IntentTTL:          30 * time.Minute,
			AutoCompleteGrace:  24 * time.Hour,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := zap.NewNop()
	store := memstore.New(log)
	repo := store.Repository()
	gw := &stubGateway{}
	notes := &mockNotifier{}
	notes.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewService(repo, Deps{Gateway: gw, Notifier: notes}, testConfig(), log)
	t.Cleanup(svc.Drain)

	return &harness{
		ctx:      context.Background(),
		store:    store,
		repo:     repo,
		svc:      svc,
		gw:       gw,
		notes:    notes,
		client:   entity.Actor{UserID: uuid.New(), Role: entity.RoleClient, Name: "client"},
		artist:   entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist, Name: "artist x"},
		rival:    entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist, Name: "artist y"},
		admin:    entity.Actor{UserID: uuid.New(), Role: entity.RoleAdmin, Name: "admin"},
		stranger: entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist, Name: "stranger"},
	}
}

// postRequest opens a request whose event starts in daysOut days.
func (h *harness) postRequest(t *testing.T, mode entity.DepositMode, daysOut int) uuid.UUID {
	t.Helper()

	start := time.Now().UTC().Add(time.Duration(daysOut) * 24 * time.Hour)
	resp, err := h.svc.Booking.PostRequest(h.ctx, h.client, &request.CreateRequestRequest{
		Title:       "Wedding reception",
		EventTypes:  []string{"wedding"},
		Location:    "Mumbai",
		EventStart:  start,
		EventEnd:    start.Add(4 * time.Hour),
		BudgetMin:   20_000,
		BudgetMax:   80_000,
		DepositMode: string(mode),
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (h *harness) propose(t *testing.T, bookingID uuid.UUID, artist entity.Actor, price int64) uuid.UUID {
	t.Helper()

	resp, err := h.svc.Proposal.SubmitProposal(h.ctx, artist, bookingID, &request.SubmitProposalRequest{
		Price:           price,
		DurationMinutes: 120,
		Message:         "happy to play",
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

// confirmed returns a booking with h.artist accepted at price.
func (h *harness) confirmed(t *testing.T, mode entity.DepositMode, price int64, daysOut int) uuid.UUID {
	t.Helper()

	bookingID := h.postRequest(t, mode, daysOut)
	proposalID := h.propose(t, bookingID, h.artist, price)
	_, err := h.svc.Proposal.AcceptProposal(h.ctx, h.client, proposalID)
	require.NoError(t, err)
	return bookingID
}

func (h *harness) settle(t *testing.T, intent *response.PaymentIntentResponse, typ entity.GatewayEventType) *gateway.CallbackEvent {
	t.Helper()
	require.NotNil(t, intent.GatewayRef)

	event := &gateway.CallbackEvent{
		ExternalRef: "pay_" + uuid.NewString(),
		Type:        typ,
		BookingID:   uuid.MustParse(intent.BookingID),
		IntentRef:   *intent.GatewayRef,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
	}
	require.NoError(t, h.svc.Payment.HandleGatewayCallback(h.ctx, event))
	return event
}

func (h *harness) payDeposit(t *testing.T, bookingID uuid.UUID) {
	t.Helper()

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	h.settle(t, intent, entity.GatewayEventDepositConfirmed)
}

func (h *harness) payRemaining(t *testing.T, bookingID uuid.UUID) {
	t.Helper()

	b := h.booking(t, bookingID)
	intent, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   b.RemainingAmount,
		ArtistID: h.artist.UserID.String(),
	})
	require.NoError(t, err)
	h.settle(t, intent, entity.GatewayEventRemainingConfirmed)
}

func (h *harness) startEvent(t *testing.T, bookingID uuid.UUID) {
	t.Helper()

	b := h.booking(t, bookingID)
	_, err := h.svc.Booking.StartDueBookings(h.ctx, b.EventStart.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, entity.BookingStatusInProgress, h.booking(t, bookingID).Status)
}

// completed returns a fully paid, completed booking for h.artist.
func (h *harness) completed(t *testing.T, price int64) uuid.UUID {
	t.Helper()

	bookingID := h.confirmed(t, entity.DepositModeFull, price, 30)
	h.payDeposit(t, bookingID)
	h.startEvent(t, bookingID)
	_, err := h.svc.Booking.CompleteBooking(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	return bookingID
}

func (h *harness) booking(t *testing.T, id uuid.UUID) *entity.Booking {
	t.Helper()

	b, err := h.repo.Booking.FindByID(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (h *harness) proposal(t *testing.T, id uuid.UUID) *entity.Proposal {
	t.Helper()

	p, err := h.repo.Proposal.FindByID(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (h *harness) auditLog(t *testing.T, bookingID uuid.UUID) []*entity.AuditLogEntry {
	t.Helper()

	entries, err := h.repo.Audit.FindByBookingID(h.ctx, bookingID)
	require.NoError(t, err)
	return entries
}

func (h *harness) transactions(t *testing.T, bookingID uuid.UUID) []*entity.Transaction {
	t.Helper()

	txs, err := h.repo.Transaction.FindByBookingID(h.ctx, bookingID)
	require.NoError(t, err)
	return txs
}

func (h *harness) pendingIntents(t *testing.T, bookingID uuid.UUID) []*entity.PaymentIntent {
	t.Helper()

	intents, err := h.repo.PaymentIntent.FindPendingByBookingID(h.ctx, bookingID)
	require.NoError(t, err)
	return intents
}

// notified reports whether an event of type typ was sent for the booking.
func (h *harness) notified(t *testing.T, typ notifier.EventType, bookingID uuid.UUID) bool {
	t.Helper()

	h.svc.Drain()
	for _, call := range h.notes.Calls {
		event := call.Arguments.Get(1).(notifier.Event)
		if event.Type == typ && event.BookingID == bookingID {
			return true
		}
	}
	return false
}

func countActions(entries []*entity.AuditLogEntry, action entity.AuditAction) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// moveEvent rewrites the event window, for sweeps that need it in the past.
func (h *harness) moveEvent(t *testing.T, bookingID uuid.UUID, start time.Time) {
	t.Helper()

	b := h.booking(t, bookingID)
	b.EventStart = start
	b.EventEnd = start.Add(4 * time.Hour)
	require.NoError(t, h.repo.Booking.Update(h.ctx, b))
}

func gatewayRefund(bookingID uuid.UUID, amount int64) *gateway.CallbackEvent {
	return &gateway.CallbackEvent{
		ExternalRef: "rfnd_" + uuid.NewString(),
		Type:        entity.GatewayEventRefundIssued,
		BookingID:   bookingID,
		Amount:      amount,
	}
}
