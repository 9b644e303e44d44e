package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"linksaver/internal/domain"
	"linksaver/internal/service/auth"
)

type contextKey struct{}

var userKey contextKey

// SessionAuthenticator resolves a session token to its user
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.SessionUser, error)
}

// WithUser returns a copy of ctx carrying the authenticated user
func WithUser(ctx context.Context, user *domain.SessionUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by RequireUser
func UserFromContext(ctx context.Context) (*domain.SessionUser, bool) {
	user, ok := ctx.Value(userKey).(*domain.SessionUser)
	return user, ok && user != nil
}

// RequireUser rejects requests without a valid session cookie
type RequireUser struct {
	sessions SessionAuthenticator
	logger   *slog.Logger
}

// NewRequireUser creates the session authentication middleware
func NewRequireUser(logger *slog.Logger, sessions SessionAuthenticator) *RequireUser {
	return &RequireUser{
		sessions: sessions,
		logger:   logger,
	}
}

// Middleware returns the authentication middleware handler
func (a *RequireUser) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.CookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, err := a.sessions.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			a.logger.Debug("Session rejected",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
