package http

import (
	"log/slog"
	"net/http"

	"linksaver/internal/http/handlers"
	"linksaver/internal/http/middleware"
)

// AuthService is what the router needs from the account service
type AuthService interface {
	handlers.Authenticator
	middleware.SessionAuthenticator
}

// Options tune the router's middleware
type Options struct {
	CookieSecure     bool
	AllowedOrigin    string
	AddRatePerMinute int
}

type Router struct {
	mux              *http.ServeMux
	handler          http.Handler
	healthHandler    *handlers.HealthHandler
	authHandler      *handlers.AuthHandler
	bookmarksHandler *handlers.BookmarksHandler
	statsHandler     *handlers.StatsHandler
}

func NewRouter(
	logger *slog.Logger,
	authService AuthService,
	bookmarkService handlers.BookmarkService,
	checks map[string]handlers.HealthCheck,
	opts Options,
) *Router {
	mux := http.NewServeMux()

	r := &Router{
		mux:              mux,
		healthHandler:    handlers.NewHealthHandler(logger, checks),
		authHandler:      handlers.NewAuthHandler(logger, authService, opts.CookieSecure),
		bookmarksHandler: handlers.NewBookmarksHandler(logger, bookmarkService),
		statsHandler:     handlers.NewStatsHandler(logger, bookmarkService),
	}

	requireUser := middleware.NewRequireUser(logger, authService).Middleware
	addLimiter := middleware.NewRateLimiter(logger, opts.AddRatePerMinute).Middleware
	private := func(h http.HandlerFunc) http.Handler { return requireUser(h) }

	r.mux.HandleFunc("GET /health", r.healthHandler.HandleHealth)

	r.mux.HandleFunc("POST /api/v1/auth/signup", r.authHandler.SignUp)
	r.mux.HandleFunc("POST /api/v1/auth/login", r.authHandler.Login)
	r.mux.HandleFunc("POST /api/v1/auth/logout", r.authHandler.Logout)
	r.mux.Handle("GET /api/v1/auth/me", private(r.authHandler.Me))

	r.mux.Handle("GET /api/v1/bookmarks", private(r.bookmarksHandler.ListBookmarks))
	r.mux.Handle("POST /api/v1/bookmarks", requireUser(addLimiter(http.HandlerFunc(r.bookmarksHandler.AddBookmark))))
	r.mux.Handle("DELETE /api/v1/bookmarks/{id}", private(r.bookmarksHandler.DeleteBookmark))
	r.mux.Handle("PUT /api/v1/bookmarks/{id}/tags", private(r.bookmarksHandler.SetTags))
	r.mux.Handle("POST /api/v1/bookmarks/{id}/refresh", private(r.bookmarksHandler.RefreshBookmark))

	r.mux.Handle("GET /api/v1/tags", private(r.bookmarksHandler.ListTags))
	r.mux.Handle("GET /api/v1/stats", private(r.statsHandler.HandleStats))

	r.handler = middleware.RequestLogger(logger)(middleware.CORS(opts.AllowedOrigin)(r.mux))
	return r
}

func (r *Router) Handler() http.Handler {
	return r.handler
}
