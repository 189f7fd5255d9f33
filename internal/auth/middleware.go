package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/freightdesk/sentinel/internal/models"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
)

type contextKey string

// UserContextKey holds the validated *models.TokenClaims of the caller
const UserContextKey contextKey = "user"

// UserRepository fetches the current state of the token's user
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware requires a valid access token and puts its claims on the request context.
// Every failure gets the same response so callers cannot probe token validity.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.ValidateToken(token)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole enforces role-based access. The role is read from the database, not the token,
// so demotions and suspensions apply before the token expires.
func RequireRole(userRepo UserRepository, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, models.ErrNotFound):
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			case err != nil:
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if user.Status != models.UserStatusActive || user.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext returns the caller's claims, or nil outside AuthMiddleware
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(UserContextKey).(*models.TokenClaims)
	return claims
}
