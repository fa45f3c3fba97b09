package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "drone_chat/pkg/errors"
)

func TestAccessTokenCarriesAdminIdentity(t *testing.T) {
	id := uuid.New()
	token, err := GenerateAccessToken(id, "ops@example.com", "admin", "secret", "drone-chat", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	token, err := GenerateRefreshToken(uuid.New(), "secret", "drone-chat", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))

	claims, err := ValidateRefreshToken(token, "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.Subject)
}

func TestExpiredAndForeignTokens(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "a@b.c", "admin", "secret", "drone-chat", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(token, "secret")
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	token, err = GenerateAccessToken(uuid.New(), "a@b.c", "admin", "other", "drone-chat", time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(token, "secret")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
