package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/auth"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	UserEmailKey contextKey = "user_email"
)

// PrincipalLoader resolves the acting principal for a validated token.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (tenancy.Principal, error)
}

// Auth validates the bearer token and loads the principal from storage, so
// deactivations and company changes apply before the token expires.
func Auth(tokens auth.TokenService, principals PrincipalLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			// Fallback for clients that cannot set Authorization
			if token == "" {
				token = r.Header.Get("X-Auth-Token")
			}

			if token == "" {
				unauthorized(w, "missing token")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			p, err := principals.LoadPrincipal(r.Context(), claims.UserID)
			if err != nil {
				unauthorized(w, "account unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "unauthenticated"})
}

// GetPrincipal returns the principal set by Auth. ok is false on routes
// without the middleware.
func GetPrincipal(ctx context.Context) (tenancy.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(tenancy.Principal)
	return p, ok
}

func GetUserID(ctx context.Context) uuid.UUID {
	if p, ok := GetPrincipal(ctx); ok {
		return p.UserID
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// RequireRole rejects principals outside roles with 403. Fine-grained checks
// stay in the services; this only fences whole route groups.
func RequireRole(roles ...tenancy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := GetPrincipal(r.Context())
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden", "code": "unauthorized"})
		})
	}
}
