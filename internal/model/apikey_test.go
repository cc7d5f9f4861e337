package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyScopesAndRole(t *testing.T) {
	tests := []struct {
		scopes    []string
		canOrder  bool
		canAdmin  bool
		principal string
	}{
		{nil, false, false, RoleUser},
		{[]string{ScopeOrders}, true, false, RoleUser},
		{[]string{ScopeAdmin}, true, true, RoleAdmin},
		{[]string{ScopeOrders, ScopeAdmin}, true, true, RoleAdmin},
	}

	for _, tt := range tests {
		key := &APIKey{ID: "key_9", UserID: "user_9", KeyPrefix: "9f8e7d6c", Scopes: tt.scopes}
		assert.Equal(t, tt.canOrder, key.HasScope(ScopeOrders), "orders scope for %v", tt.scopes)
		assert.Equal(t, tt.canAdmin, key.HasScope(ScopeAdmin), "admin scope for %v", tt.scopes)

		p := key.Principal()
		assert.Equal(t, tt.principal, p.Role, "role for %v", tt.scopes)
		assert.Equal(t, Principal{
			UserID:    "user_9",
			Role:      tt.principal,
			Source:    SourceAPIKey,
			KeyID:     "key_9",
			KeyPrefix: "9f8e7d6c",
		}, *p)
	}
}

func TestPrincipalHasRole(t *testing.T) {
	admin := &Principal{Role: RoleAdmin}
	learner := &Principal{Role: RoleUser}

	assert.True(t, admin.HasRole(RoleAdmin))
	assert.True(t, admin.HasRole(RoleUser), "admins hold every role")
	assert.True(t, learner.HasRole(RoleUser))
	assert.False(t, learner.HasRole(RoleAdmin))
}

func TestAPIKeyJSONOmitsHash(t *testing.T) {
	revoked := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	key := &APIKey{ID: "key_1", KeyHash: "$argon2id$secret", KeyPrefix: "abcd1234", RevokedAt: &revoked}
	require.True(t, key.IsRevoked())

	data, err := json.Marshal(key)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
	assert.Contains(t, string(data), `"revoked_at":"2026-03-01T00:00:00Z"`)
	assert.False(t, (&APIKey{}).IsRevoked())
}

func TestValidScopes(t *testing.T) {
	assert.ElementsMatch(t, []string{ScopeOrders, ScopeAdmin}, ValidScopes)
}
