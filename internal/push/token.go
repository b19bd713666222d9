package push

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the credential attached to each dial.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a pre-issued token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() (string, error) { return string(s), nil }

// Claims is the payload of tokens minted by HMACTokenSource.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// HMACTokenSource mints short-lived HS256 tokens from a shared secret.
type HMACTokenSource struct {
	Secret   []byte
	UserID   string
	Username string
	TTL      time.Duration
	Clock    clock.Clock
}

// Token implements TokenSource.
func (s *HMACTokenSource) Token() (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("token secret is empty")
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := clk.Now()
	claims := Claims{
		UserID:   s.UserID,
		Username: s.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
