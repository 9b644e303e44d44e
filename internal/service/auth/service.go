package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"linksaver/internal/domain"
)

// Session settings
const (
	CookieName = "auth-token"
	SessionTTL = 7 * 24 * time.Hour
	Issuer     = "link-saver"
	Audience   = "link-saver-users"

	minPasswordLen = 6
	bcryptCost     = 12
)

// ErrInvalidToken is returned for a session token that is malformed, expired or forged
var ErrInvalidToken = errors.New("invalid session token")

// Claims are the session token claims
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Service handles accounts and session tokens
type Service struct {
	logger *slog.Logger
	users  domain.UserRepository
	secret []byte
	cost   int
	now    func() time.Time
}

// NewService creates an auth service signing sessions with secret
func NewService(logger *slog.Logger, users domain.UserRepository, secret string) *Service {
	return &Service{
		logger: logger,
		users:  users,
		secret: []byte(secret),
		cost:   bcryptCost,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account
func (s *Service) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	if len(password) < minPasswordLen {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "user_id", user.ID)
	return user, nil
}

// SignIn checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("Password mismatch", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken signs a session token for userID
func (s *Service) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
		UserID: userID.String(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a session token and returns its user ID
func (s *Service) ParseToken(tokenStr string) (uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}

// Authenticate resolves a session token to its user
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (*domain.SessionUser, error) {
	userID, err := s.ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
		}
		return nil, err
	}
	return &domain.SessionUser{ID: user.ID, Email: user.Email}, nil
}
