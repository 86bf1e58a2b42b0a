package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/memstore"
	"gig-booking/internal/dto/response"
	"gig-booking/internal/gateway"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/middleware"
	"gig-booking/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	jwtSecret = "router-test-secret"
	goodSig   = "sig-ok"
)

type fakeGateway struct {
	mu  sync.Mutex
	seq int
}

func (g *fakeGateway) CreatePaymentIntent(context.Context, gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return &gateway.PaymentOrder{GatewayRef: fmt.Sprintf("order_%d", g.seq)}, nil
}

func (g *fakeGateway) RequestRefund(context.Context, gateway.RefundRequest) (string, error) {
	return "rfnd_1", nil
}

func (g *fakeGateway) CreatePayout(context.Context, gateway.PayoutRequest) (string, error) {
	return "trf_1", nil
}

func (g *fakeGateway) OnboardingURL(artistID uuid.UUID) string {
	return "https://onboarding.test/" + artistID.String()
}

// fakeParser accepts JSON-encoded CallbackEvents signed with goodSig.
type fakeParser struct{}

func (fakeParser) ParseWebhook(body []byte, signature string) (*gateway.CallbackEvent, error) {
	if signature != goodSig {
		return nil, gateway.ErrInvalidSignature
	}
	var ev gateway.CallbackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, gateway.ErrMalformedPayload
	}
	if ev.Type == "" {
		return nil, gateway.ErrUnsupportedEvent
	}
	return &ev, nil
}

type testServer struct {
	t      *testing.T
	app    *App
	client entity.Actor
	artist entity.Actor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	config := &utils.Config{
		JWT:     utils.JWTConfig{Secret: jwtSecret},
		Gateway: utils.GatewayConfig{Currency: "INR"},
		Engine: utils.EngineConfig{
			PlatformFeePercent: 10,
			IntentTTL:          30 * time.Minute,
			AutoCompleteGrace:  24 * time.Hour,
		},
		RateLimit: utils.RateLimitConfig{Webhook: "100-1m", Withdrawal: "2-1m"},
	}

	log := zap.NewNop()
	app := Wiring(memstore.New(log).Repository(), usecase.Deps{Gateway: &fakeGateway{}}, fakeParser{}, nil, config, log)
	t.Cleanup(app.Service.Drain)

	return &testServer{
		t:      t,
		app:    app,
		client: entity.Actor{UserID: uuid.New(), Role: entity.RoleClient, Name: "Client"},
		artist: entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist, Name: "Artist"},
	}
}

func (s *testServer) token(actor entity.Actor) string {
	s.t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: actor.Role,
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(s.t, err)
	return signed
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func (s *testServer) do(actor *entity.Actor, method, path string, body any, header ...string) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*actor))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (s *testServer) callback(ev *gateway.CallbackEvent, sig string) (int, envelope) {
	s.t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(s.t, err)
	return s.do(nil, http.MethodPost, "/api/gateway/callbacks", body, adaptor.SignatureHeader, sig)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// confirmedBooking walks a request through proposal and accept over HTTP.
func (s *testServer) confirmedBooking() response.BookingResponse {
	s.t.Helper()
	start := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)

	code, env := s.do(&s.client, http.MethodPost, "/api/requests", map[string]any{
		"title":        "Jazz trio for a wedding",
		"event_types":  []string{"wedding"},
		"location":     "Bengaluru",
		"event_start":  start,
		"event_end":    start.Add(3 * time.Hour),
		"budget_min":   5000,
		"budget_max":   15000,
		"deposit_mode": "half",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	booking := decode[response.BookingResponse](s.t, env)

	code, env = s.do(&s.artist, http.MethodPost, "/api/requests/"+booking.ID+"/proposals", map[string]any{
		"price":            10000,
		"duration_minutes": 180,
		"message":          "We can do a three hour set",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	proposal := decode[response.ProposalResponse](s.t, env)

	code, env = s.do(&s.client, http.MethodPost, "/api/proposals/"+proposal.ID+"/accept", nil)
	require.Equal(s.t, http.StatusOK, code, env.Message)
	accepted := decode[response.AcceptProposalResponse](s.t, env)
	require.Equal(s.t, entity.BookingStatusConfirmed, accepted.Booking.Status)

	return accepted.Booking
}

func TestRouter_BookingFlow(t *testing.T) {
	s := newTestServer(t)
	booking := s.confirmedBooking()

	code, env := s.do(&s.client, http.MethodPost, "/api/bookings/"+booking.ID+"/deposit", nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	intent := decode[response.PaymentIntentResponse](t, env)
	assert.Equal(t, int64(5000), intent.Amount)
	require.NotNil(t, intent.GatewayRef)

	event := &gateway.CallbackEvent{
		ExternalRef: "pay_router_1",
		Type:        entity.GatewayEventDepositConfirmed,
		BookingID:   uuid.MustParse(booking.ID),
		IntentRef:   *intent.GatewayRef,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
	}

	code, _ = s.callback(event, goodSig)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.callback(event, goodSig)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already processed", env.Message)

	code, env = s.do(&s.artist, http.MethodGet, "/api/bookings/"+booking.ID, nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[response.BookingResponse](t, env)
	assert.Equal(t, entity.PaymentStatusHalf, got.PaymentStatus)
	assert.Equal(t, int64(5000), got.RemainingAmount)

	// the event has not started yet
	code, _ = s.do(&s.client, http.MethodPost, "/api/bookings/"+booking.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(&s.client, http.MethodGet, "/api/bookings/"+booking.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, "null", string(env.Data))
}

func TestRouter_Callbacks(t *testing.T) {
	s := newTestServer(t)
	booking := s.confirmedBooking()

	code, _ := s.callback(&gateway.CallbackEvent{ExternalRef: "x", Type: entity.GatewayEventDepositConfirmed}, "forged")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.callback(&gateway.CallbackEvent{ExternalRef: "x"}, goodSig)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", env.Message)

	code, _ = s.do(nil, http.MethodPost, "/api/gateway/callbacks", []byte("{not json"), adaptor.SignatureHeader, goodSig)
	assert.Equal(t, http.StatusBadRequest, code)

	// more than the booking could ever owe
	code, _ = s.callback(&gateway.CallbackEvent{
		ExternalRef: "pay_ghost",
		Type:        entity.GatewayEventDepositConfirmed,
		BookingID:   uuid.MustParse(booking.ID),
		IntentRef:   "order_ghost",
		Amount:      20000,
		Currency:    "INR",
	}, goodSig)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestRouter_AccessControl(t *testing.T) {
	s := newTestServer(t)
	booking := s.confirmedBooking()
	stranger := entity.Actor{UserID: uuid.New(), Role: entity.RoleClient}

	tests := []struct {
		name   string
		actor  *entity.Actor
		method string
		path   string
		want   int
	}{
		{"no token", nil, http.MethodGet, "/api/bookings/" + booking.ID, http.StatusUnauthorized},
		{"stranger reads booking", &stranger, http.MethodGet, "/api/bookings/" + booking.ID, http.StatusForbidden},
		{"bad id", &s.client, http.MethodGet, "/api/bookings/not-a-uuid", http.StatusBadRequest},
		{"unknown booking", &s.client, http.MethodGet, "/api/bookings/" + uuid.NewString(), http.StatusNotFound},
		{"artist posts request", &s.artist, http.MethodPost, "/api/requests", http.StatusForbidden},
		{"client opens wallet", &s.client, http.MethodGet, "/api/wallet", http.StatusForbidden},
		{"artist opens wallet", &s.artist, http.MethodGet, "/api/wallet", http.StatusOK},
		{"artist pays deposit", &s.artist, http.MethodPost, "/api/bookings/" + booking.ID + "/deposit", http.StatusForbidden},
		{"stranger pays deposit", &stranger, http.MethodPost, "/api/bookings/" + booking.ID + "/deposit", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := s.do(tt.actor, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRouter_Withdraw(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(&s.artist, http.MethodPost, "/api/wallet/withdrawals", map[string]any{
		"amount":      100,
		"request_key": "wd-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code, env.Message)

	code, env = s.do(&s.artist, http.MethodPost, "/api/wallet/withdrawals", map[string]any{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Errors)

	// the third call inside a minute is throttled
	code, _ = s.do(&s.artist, http.MethodPost, "/api/wallet/withdrawals", map[string]any{"amount": 1, "request_key": "wd-2"})
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, env = s.do(&s.artist, http.MethodGet, "/api/wallet/withdrawals", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]response.PayoutResponse](t, env))
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
