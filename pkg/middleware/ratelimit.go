package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gig-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// ParseCustomRate accepts "<limit>-<period>" with a s, m or h period, e.g. "10-2m".
func ParseCustomRate(rateStr string) (limiter.Rate, error) {
	limitStr, periodStr, ok := strings.Cut(rateStr, "-")
	if !ok {
		return limiter.Rate{}, fmt.Errorf("invalid rate format: %s", rateStr)
	}

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid limit: %s", limitStr)
	}

	if len(periodStr) < 2 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %s", periodStr)
	}
	n, err := strconv.Atoi(periodStr[:len(periodStr)-1])
	if err != nil || n <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %s", periodStr)
	}

	var unit time.Duration
	switch periodStr[len(periodStr)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return limiter.Rate{}, fmt.Errorf("unsupported period: %s", periodStr)
	}

	return limiter.Rate{Period: time.Duration(n) * unit, Limit: limit}, nil
}

// RateLimit throttles a route per caller. With a nil client the counters
// live in process memory.
func RateLimit(rdb *redis.Client, routeID, rateStr string, logger *zap.Logger) func(http.Handler) http.Handler {
	rate, err := ParseCustomRate(rateStr)
	if err != nil {
		logger.Error("Rate limiter disabled", zap.Error(err), zap.String("route", routeID))
		return passThrough
	}

	var store limiter.Store
	if rdb != nil {
		store, err = redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix:   "rate_limiter:" + routeID,
			MaxRetry: 3,
		})
		if err != nil {
			logger.Error("Rate limiter disabled", zap.Error(err), zap.String("route", routeID))
			return passThrough
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          "rate_limiter:" + routeID,
			CleanUpInterval: rate.Period,
		})
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(callerKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("Rate limit reached",
				zap.String("route", routeID),
				zap.String("key", callerKey(r)),
			)
			utils.ResponseTooManyRequests(w, "Too many requests, slow down")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Rate limiter store failed", zap.Error(err), zap.String("route", routeID))
			utils.ResponseInternalError(w, "Internal server error")
		}),
	)
	return mw.Handler
}

// callerKey is the authenticated user if there is one, the client IP otherwise.
func callerKey(r *http.Request) string {
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "user:" + userID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func passThrough(next http.Handler) http.Handler {
	return next
}
