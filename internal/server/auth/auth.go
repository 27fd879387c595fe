// Package auth resolves opaque bearer credentials to a user identity. The
// sync service never interprets a credential itself; it only sees the user
// this service hands back.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// IssueAccessToken mints a signed access token for a user. Used by the
// devstack and by operators provisioning a device; there is no interactive
// login flow in this server.
func (s *AuthService) IssueAccessToken(user string) (string, error) {
	var expiry *jwt.NumericDate
	if s.config.AccessTokenExpiry > 0 {
		expiry = jwt.NewNumericDate(time.Now().Add(s.config.AccessTokenExpiry))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user,
			Issuer:    s.config.TokenIssuer,
			ExpiresAt: expiry,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

// ValidateAccessToken resolves a bearer token to its subject.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := ParseClaims(tokenString, s.config.AccessTokenSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
