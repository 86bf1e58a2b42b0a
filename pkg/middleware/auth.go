package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims carried by tokens from the identity service.
type Claims struct {
	Role entity.UserRole `json:"role"`
	Name string          `json:"name"`
	jwt.RegisteredClaims
}

var errUnknownRole = errors.New("unknown role")

// Auth verifies the bearer token and puts the caller's Actor on the request context.
func Auth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			actor, err := parseActor(tokenString, key)
			if err != nil {
				logger.Warn("Rejected token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseUnauthorized(w, "Invalid or expired token")
				return
			}

			noteCaller(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(utils.SetActorContext(r.Context(), actor)))
		})
	}
}

func parseActor(tokenString string, key []byte) (entity.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return entity.Actor{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("subject: %w", err)
	}

	switch claims.Role {
	case entity.RoleClient, entity.RoleArtist, entity.RoleAdmin:
	default:
		return entity.Actor{}, fmt.Errorf("%w: %q", errUnknownRole, claims.Role)
	}

	return entity.Actor{UserID: userID, Role: claims.Role, Name: claims.Name}, nil
}

// RequireRole lets the request through only for the listed roles. Must run after Auth.
func RequireRole(logger *zap.Logger, roles ...entity.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("Role check failed",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", string(actor.Role)),
				zap.String("path", r.URL.Path),
			)
			utils.ResponseForbidden(w, "You do not have access to this resource")
		})
	}
}
