package model

import (
	"slices"
	"time"
)

// Scope constants for API key authorization.
const (
	ScopeOrders = "orders"
	ScopeAdmin  = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeOrders, ScopeAdmin}

// Principal sources.
const (
	SourceToken  = "token"
	SourceAPIKey = "api_key"
)

// APIKey is a service credential bound to a user.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"` // Never serialize
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *APIKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// Principal returns the request principal this key authenticates as.
func (k *APIKey) Principal() *Principal {
	role := RoleUser
	if k.HasScope(ScopeAdmin) {
		role = RoleAdmin
	}
	return &Principal{
		UserID:    k.UserID,
		Role:      role,
		Source:    SourceAPIKey,
		KeyID:     k.ID,
		KeyPrefix: k.KeyPrefix,
	}
}

// Principal is the authenticated caller of a request.
// It is injected into the request context by the auth middleware.
type Principal struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Source    string `json:"source"`
	KeyID     string `json:"key_id,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// HasRole reports whether the principal holds role.
// Admins hold every role.
func (p *Principal) HasRole(role string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.Role == role
}
