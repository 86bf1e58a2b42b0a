package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCustomRate(t *testing.T) {
	tests := []struct {
		in     string
		limit  int64
		period time.Duration
		bad    bool
	}{
		{in: "10-2m", limit: 10, period: 2 * time.Minute},
		{in: "5-1s", limit: 5, period: time.Second},
		{in: "100-24h", limit: 100, period: 24 * time.Hour},
		{in: "10", bad: true},
		{in: "x-1m", bad: true},
		{in: "0-1m", bad: true},
		{in: "10-m", bad: true},
		{in: "10-0m", bad: true},
		{in: "10-3d", bad: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rate, err := ParseCustomRate(tt.in)
			if tt.bad {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, rate.Limit)
			assert.Equal(t, tt.period, rate.Period)
		})
	}
}

func TestRateLimit_MemoryStore(t *testing.T) {
	h := RateLimit(nil, "withdraw", "2-1m", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	alice := entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist}
	bob := entity.Actor{UserID: uuid.New(), Role: entity.RoleArtist}
	serve := func(actor entity.Actor) int {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/withdrawals", nil)
		req = req.WithContext(utils.SetActorContext(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(alice))
	assert.Equal(t, http.StatusNoContent, serve(alice))
	assert.Equal(t, http.StatusTooManyRequests, serve(alice))

	// counters are per caller
	assert.Equal(t, http.StatusNoContent, serve(bob))
}

func TestRateLimit_InvalidRatePassesThrough(t *testing.T) {
	h := RateLimit(nil, "webhook", "lots", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gateway/callbacks", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "ip:10.1.2.3", callerKey(req))

	id := uuid.New()
	req = req.WithContext(utils.SetActorContext(req.Context(), entity.Actor{UserID: id, Role: entity.RoleClient}))
	assert.Equal(t, "user:"+id.String(), callerKey(req))
}
