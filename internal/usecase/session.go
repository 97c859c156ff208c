package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"assistant-bridge/internal/domain"
)

// SessionClaims is the payload of the host session cookie.
type SessionClaims struct {
	Workspace string          `json:"workspace"`
	Role      domain.HostRole `json:"role"`
	jwt.RegisteredClaims
}

func signSession(key []byte, userID, workspaceID string, role domain.HostRole, issued, expires time.Time) (string, error) {
	if len(key) == 0 {
		return "", errors.New("usecase: signing key is empty")
	}
	claims := SessionClaims{
		Workspace: workspaceID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newUUID(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("usecase: sign session: %w", err)
	}
	return signed, nil
}

// ParseSession verifies a host session token signed with key.
func ParseSession(key []byte, token string) (SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return SessionClaims{}, fmt.Errorf("usecase: parse session: %w", err)
	}
	return claims, nil
}
