package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/pkg/auth"
	"github.com/teebox/teebox-bookings/pkg/config"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService issues access tokens for staff accounts. Guests never log in;
// they manage bookings through per-booking manage tokens.
type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
}

type authService struct {
	users repository.UserRepository
	cfg   config.AuthConfig
}

func NewAuthService(users repository.UserRepository, cfg config.AuthConfig) AuthService {
	return &authService{users: users, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !match {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.ID, user.Email, string(user.Role), s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}
