package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is package-private so no other package can read or shadow
// the operator value stored in a request context.
type contextKey string

const operatorKey contextKey = "operator"

// RequireOperator guards mutating routes with an operator token.
//
// The token is read from "Authorization: Bearer <jwt>", falling back to a
// "token" cookie. A missing or invalid token stops the chain with 401.
//
// A nil tokens disables the guard: every request passes through. The server
// logs a warning when it starts that way (JWT_SECRET unset).
func RequireOperator(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator, err := extractOperator(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid operator token required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFromContext returns the operator that authorised the request.
// Returns ("", false) when the guard is disabled or the route is public.
func OperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok && op != ""
}

func extractOperator(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return tokens.Validate(strings.TrimSpace(h[len(prefix):]))
		}
	}

	cookie, err := r.Cookie("token")
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
