package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/xelth-com/eckposgo/internal/utils"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

// AuthMiddleware verifies operator JWT tokens
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects operators whose role is not listed. Must run after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Operator(r.Context())
			if claims == nil {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Insufficient role", http.StatusForbidden)
		})
	}
}

// Operator returns the authenticated operator, nil when the request carried none
func Operator(ctx context.Context) *utils.OperatorClaims {
	claims, _ := ctx.Value(OperatorContextKey).(*utils.OperatorClaims)
	return claims
}

// Actor names the operator for audit records
func Actor(ctx context.Context) string {
	if c := Operator(ctx); c != nil {
		return c.Username
	}
	return "system"
}
