package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/auth"
	"github.com/gosuda/orkestra/internal/domain"
)

// UserGetter resolves the current state of an authenticated user.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Auth authenticates the Bearer token. When users is non-nil the role is
// taken from the stored user rather than the token, so role changes apply
// without reissuing tokens.
func Auth(jwtSecret string, users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				unauthorized(w)
				return
			}

			ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret, users)
			if !ok {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string, users UserGetter) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil {
		return ctx, false
	}

	userID, role, err := claims.Identity()
	if err != nil {
		return ctx, false
	}

	if users != nil {
		u, err := users.GetByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Str("user_id", userID.String()).Msg("auth: resolve user failed")
			}
			return ctx, false
		}
		role = u.Role
	}

	return WithIdentity(ctx, userID, role), true
}
