package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the claims the frontend cares about. The access token is
// decoded without signature verification — validation is the server's job,
// the client only peeks at expiry and role hints.
type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errMalformedToken = errors.New("session: malformed access token")

func peekClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, errMalformedToken
	}
	return claims, nil
}

// TokenExpiry returns the access token's expiry when one is decodable.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	m.mu.Lock()
	token := m.tokens.AccessToken
	m.mu.Unlock()
	if token == "" {
		return time.Time{}, false
	}
	claims, err := peekClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenRole returns the role claim embedded in the access token, useful
// before the user fetch has resolved.
func (m *Manager) TokenRole() string {
	m.mu.Lock()
	token := m.tokens.AccessToken
	m.mu.Unlock()
	if token == "" {
		return ""
	}
	claims, err := peekClaims(token)
	if err != nil {
		return ""
	}
	return claims.Role
}
