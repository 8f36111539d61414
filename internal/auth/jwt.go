// Package auth issues and checks the bearer tokens that bind a client to its
// split session.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// TokenManager handles session token generation and validation.
type TokenManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims represents the custom JWT claims for a split session. The subject is
// the owner: a stable client identity that outlives any single session and
// scopes the saved split history.
type Claims struct {
	SessionID string `json:"session_id"`
	UserName  string `json:"user_name,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the client identity the token was issued to.
func (c *Claims) Owner() string { return c.Subject }

// NewTokenManager creates a token manager with the given secret and token duration.
// The duration should match the session TTL so a token never outlives its session
// by much.
func NewTokenManager(secretKey string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate creates a signed token for the given session and owner.
func (m *TokenManager) Generate(sessionID, userName, owner string) (string, error) {
	now := m.now()
	claims := &Claims{
		SessionID: sessionID,
		UserName:  userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a token, returning the claims if valid.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	return m.parse(tokenString, jwt.WithTimeFunc(m.now))
}

// PreviousOwner returns the owner of a token this manager signed, even when
// the token has expired. A client starting a new session presents its last
// token this way to keep its history.
func (m *TokenManager) PreviousOwner(tokenString string) (string, error) {
	claims, err := m.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", err
	}
	return claims.Owner(), nil
}

func (m *TokenManager) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" || claims.Owner() == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
