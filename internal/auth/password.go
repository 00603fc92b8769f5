package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNotConfigured      = errors.New("admin password not configured")
)

// AdminSubject is the token subject issued to the operator.
const AdminSubject = "admin"

// PasswordAuthenticator checks the operator password against a bcrypt hash.
type PasswordAuthenticator struct {
	passwordHash []byte
}

// NewPasswordAuthenticator creates an authenticator for the given bcrypt hash.
// An empty hash rejects every login.
func NewPasswordAuthenticator(passwordHash string) *PasswordAuthenticator {
	return &PasswordAuthenticator{passwordHash: []byte(passwordHash)}
}

// Authenticate compares the password with the configured hash.
func (a *PasswordAuthenticator) Authenticate(_ context.Context, credential string) (string, error) {
	if len(a.passwordHash) == 0 {
		return "", ErrNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(credential)); err != nil {
		return "", ErrInvalidCredentials
	}
	return AdminSubject, nil
}

// HashPassword returns the bcrypt hash to configure as ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
