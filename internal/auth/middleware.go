package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const accountIDKey = contextKey("account-id")

// RequireToken guards a handler behind Bearer token verification and puts
// the account id into the request context.
func RequireToken(tokens *TokenService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.Verify(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// AccountID extracts the authenticated account id from the context. Empty if
// the request did not pass RequireToken.
func AccountID(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}
