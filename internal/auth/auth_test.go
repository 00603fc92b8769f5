package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate(AdminSubject, RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTManager("other", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTManager("test-secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()

	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	var a Authenticator = NewPasswordAuthenticator(hash)
	subject, err := a.Authenticate(ctx, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, subject)

	_, err = a.Authenticate(ctx, "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewPasswordAuthenticator("").Authenticate(ctx, "anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
