package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gig-booking/internal/data/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NamesAuthenticatedCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	userID := uuid.New()

	h := Logger(zap.New(core))(Auth(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/user/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor(userID.String(), entity.RoleClient, time.Hour)))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, userID.String(), fields["user_id"])
	assert.Equal(t, "client", fields["role"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Logger(zap.New(core))(Auth(testSecret, zap.NewNop())(http.NotFoundHandler()))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.NotContains(t, entries[0].ContextMap(), "user_id")
}
