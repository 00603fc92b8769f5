package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/revshare/internal/auth"
)

// LoginResult is an issued operator session.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService issues tokens for the administrative API.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Login authenticates the operator and returns a signed token.
func (s *AuthService) Login(ctx context.Context, password string) (*LoginResult, error) {
	s.logger.Info("Login request")

	if password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	subject, err := s.authenticator.Authenticate(ctx, password)
	if err != nil {
		s.logger.Warn("Login failed", "error", err)
		return nil, auth.ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(subject, auth.RoleAdmin)
	if err != nil {
		s.logger.Error("Failed to generate token", "subject", subject, "error", err)
		return nil, err
	}

	s.logger.Info("Operator logged in", "subject", subject)
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwtManager.TokenDuration()).UTC(),
	}, nil
}
