package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-clinic/meridian/internal/platform/httpx"
)

type contextKey struct{}

var accountContextKey contextKey

// Middleware guards routes that require a valid bearer token.
type Middleware struct {
	Logger  *slog.Logger
	Service *Service
}

// RequireAuth verifies the Authorization bearer token, confirms the
// account still exists and is active, and stores it in the request
// context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		account, err := m.Service.AccountFromToken(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("reject bearer token", slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountFromContext returns the authenticated account, or nil when the
// request did not pass RequireAuth.
func AccountFromContext(ctx context.Context) *Account {
	account, _ := ctx.Value(accountContextKey).(*Account)
	return account
}
