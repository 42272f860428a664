// session/token.go
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid identity token")

type identityClaims struct {
	PlayerID string `json:"pid"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the identity token a client presents on
// reconnect to resume its player id.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenManager signs with secret. An empty secret gets a random per-process key,
// so tokens stop working after a restart.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &TokenManager{
		secretKey: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (m *TokenManager) Generate(playerID string) (string, error) {
	now := m.now()
	claims := identityClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify returns the player id carried by tokenString.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", ErrInvalidToken
	}

	if claims, ok := token.Claims.(*identityClaims); ok && token.Valid && claims.PlayerID != "" {
		return claims.PlayerID, nil
	}
	return "", ErrInvalidToken
}
