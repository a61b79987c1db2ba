// Package auth provides JWT bearer authentication for the xgate control API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// Claims represents the JWT claims carried by xgate API tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Username is the authenticated user the token was issued to.
	Username string `json:"username"`
}

// Config holds configuration for token generation and validation.
type Config struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "xgate"
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 1 hour.
	TokenDuration time.Duration
}

// TokenService issues and validates HS256 bearer tokens for the API.
type TokenService struct {
	config Config
}

// Token is an issued bearer token together with its expiry metadata.
type Token struct {
	// AccessToken is the signed JWT presented in the Authorization header.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// ExpiresAt is the token expiration time.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenService creates a new token service with the given configuration.
func NewTokenService(config Config) (*TokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}

	// Apply defaults
	if config.Issuer == "" {
		config.Issuer = "xgate"
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = time.Hour
	}

	return &TokenService{config: config}, nil
}

// Generate creates a signed token for the given username.
func (s *TokenService) Generate(username string) (*Token, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, ErrTokenSigningFailed
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.TokenDuration.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// Validate validates a token string and returns the claims.
// Returns an error if the token is invalid or expired.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenDuration returns the configured token lifetime.
func (s *TokenService) TokenDuration() time.Duration {
	return s.config.TokenDuration
}
