package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail parsing or
	// signature/expiry checks.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrTokenSecretMissing is returned when no signing secret is configured.
	ErrTokenSecretMissing = errors.New("access token secret not configured")
)

// accessClaims are the claims carried by access tokens.
type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a TokenManager signing with secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID with role, valid for ttl.
func (m *TokenManager) Issue(userID, role string, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrTokenSecretMissing
	}
	now := m.now()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses raw and returns the principal it authenticates.
// Tokens must be HS256, unexpired and carry a subject.
func (m *TokenManager) Verify(raw string) (*model.Principal, error) {
	if len(m.secret) == 0 {
		return nil, ErrTokenSecretMissing
	}

	var claims accessClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	return &model.Principal{
		UserID: claims.Subject,
		Role:   role,
		Source: model.SourceToken,
	}, nil
}
