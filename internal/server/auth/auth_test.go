package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *AuthService {
	return NewAuthService(&Config{
		Enabled:           true,
		TokenIssuer:       "dotsync-test",
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testService()

	token, err := svc.IssueAccessToken("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "dotsync-test", claims.Issuer)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := testService()

	_, err := svc.ValidateAccessToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := testService()
	other := NewAuthService(&Config{
		Enabled:           true,
		TokenIssuer:       "dotsync-test",
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: time.Hour,
	})

	token, err := other.IssueAccessToken("alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewAuthService(&Config{
		Enabled:           true,
		TokenIssuer:       "dotsync-test",
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: -time.Minute,
	})

	token, err := svc.IssueAccessToken("alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Enabled: true}
	assert.Error(t, cfg.Validate())

	cfg.TokenIssuer = "dotsync"
	assert.Error(t, cfg.Validate())

	cfg.AccessTokenSecret = "secret"
	assert.NoError(t, cfg.Validate())

	disabled := &Config{Enabled: false}
	assert.NoError(t, disabled.Validate())
}
