package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"linksaver/internal/domain"
	"linksaver/internal/http/middleware"
	"linksaver/internal/service/auth"
)

// Authenticator creates accounts and session tokens
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.User, error)
	IssueToken(userID uuid.UUID) (string, error)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *domain.SessionUser `json:"user"`
}

type AuthHandler struct {
	logger       *slog.Logger
	auth         Authenticator
	secureCookie bool
}

func NewAuthHandler(logger *slog.Logger, auth Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		auth:         auth,
		secureCookie: secureCookie,
	}
}

// SignUp creates an account and starts a session
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.SignUp(r.Context(), body.Email, body.Password)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if !h.startSession(w, user) {
		return
	}
	h.logger.Info("User signed up", "user_id", user.ID)
	writeJSONResponse(w, h.logger, http.StatusCreated, userResponse{User: sessionUser(user)})
}

// Login verifies credentials and starts a session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if !h.startSession(w, user) {
		return
	}
	writeJSONResponse(w, h.logger, http.StatusOK, userResponse{User: sessionUser(user)})
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie("", -1))
	writeJSONResponse(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the signed-in user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSONResponse(w, h.logger, http.StatusOK, userResponse{User: user})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *domain.User) bool {
	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to issue session token", "error", err, "user_id", user.ID)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return false
	}
	http.SetCookie(w, h.cookie(token, int(auth.SessionTTL/time.Second)))
	return true
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionUser(u *domain.User) *domain.SessionUser {
	return &domain.SessionUser{ID: u.ID, Email: u.Email}
}
