package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/rs/zerolog/log"
)

type contextKey string

const userKey contextKey = "user"

// Auth validates the bearer token and attaches the caller to the request
// context
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			claims := &models.JWTClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("Rejected invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			user := models.UserContext{
				UserID: claims.UserID,
				Role:   claims.Role,
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the authenticated caller from the context
func GetUser(ctx context.Context) (models.UserContext, bool) {
	user, ok := ctx.Value(userKey).(models.UserContext)
	return user, ok
}
