package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/melizondo/voltcart/internal/models"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// UserContextKey is the key for storing user claims in context
const UserContextKey contextKey = "user"

// EventRecorder is the narrow event-logging capability the middleware needs
// to record unauthorized access attempts.
type EventRecorder interface {
	LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails)
}

// Middleware validates JWT session tokens and injects the claims into the
// request context.
func Middleware(tm *TokenManager, events EventRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				events.LogEvent(r.Context(), models.EventUnauthorizedAccess, r.URL.Path, r.UserAgent(), models.EventDetails{
					"reason": "invalid_token",
				})
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose token does not carry the
// required role. Denials are logged as unauthorized_access events.
func RequireRole(role string, events EventRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			if claims.Role != role {
				events.LogEvent(r.Context(), models.EventUnauthorizedAccess, r.URL.Path, r.UserAgent(), models.EventDetails{
					"reason":   "insufficient_role",
					"required": role,
					"user_id":  claims.UserID,
				})
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts token claims injected by Middleware
func ClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.TokenClaims)
	return claims, ok
}
