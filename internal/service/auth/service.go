package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
	jwtpkg "github.com/rikouu/serdo-v2-sub001/pkg/jwt"
)

// MinPasswordLength is enforced on signup.
const MinPasswordLength = 8

var (
	ErrTokenRequired      = errors.New("token required")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInvalid       = errors.New("email invalid")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailTaken         = errors.New("email already registered")
)

// Service handles authentication workflows.
type Service struct {
	users     repository.UserRepository
	tenants   repository.TenantRepository
	logger    *slog.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

// New constructs a Service. tenants receives an empty document for every new
// account so the scheduler sees it.
func New(users repository.UserRepository, tenants repository.TenantRepository, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) Service {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return Service{
		users:     users,
		tenants:   tenants,
		logger:    logger.With("component", "auth"),
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Token is a bearer access token.
type Token struct {
	AccessToken string        `json:"accessToken"`
	ExpiresIn   time.Duration `json:"-"`
}

// Signup registers a new user owning a fresh tenant.
func (s Service) Signup(ctx context.Context, email, password string) (*domain.User, Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, Token{}, ErrEmailInvalid
	}
	if len(password) < MinPasswordLength {
		return nil, Token{}, ErrPasswordTooShort
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, Token{}, err
	}
	id := uuid.NewString()
	user := &domain.User{
		ID:           id,
		TenantID:     id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, Token{}, ErrEmailTaken
		}
		return nil, Token{}, err
	}
	if s.tenants != nil {
		if _, err := s.tenants.Update(ctx, user.TenantID, func(*domain.Document) error { return nil }); err != nil {
			return nil, Token{}, fmt.Errorf("create tenant: %w", err)
		}
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates a user and returns an access token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Token, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Token{}, ErrInvalidCredentials
		}
		return nil, Token{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("login rejected", "user_id", user.ID)
		return nil, Token{}, ErrInvalidCredentials
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrTokenRequired
	}
	claims, err := jwtpkg.Parse(trimmed, s.jwtSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if claims.TenantID != user.TenantID {
		return nil, nil, ErrTokenInvalid
	}
	return user, claims, nil
}

func (s Service) issueToken(user *domain.User) (Token, error) {
	access, err := jwtpkg.GenerateToken(user.ID, user.TenantID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: access, ExpiresIn: s.tokenTTL}, nil
}
