package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
	// authRevokedPrefix marks revoked key IDs for as long as a cached
	// principal for them can live.
	authRevokedPrefix = "auth:revoked:"
)

// GetPrincipal retrieves a cached principal by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetPrincipal(ctx context.Context, cacheKey string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var principal model.Principal
	if err := json.Unmarshal(data, &principal); err != nil || principal.UserID == "" {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &principal, nil
}

// SetPrincipal caches a principal resolved from an API key.
func (c *Cache) SetPrincipal(ctx context.Context, cacheKey string, principal *model.Principal) error {
	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL).Err()
}

// MarkKeyRevoked flags keyID so cached principals for it stop being honored.
// Cache entries are keyed by a hash of the plaintext, which is unknown at
// revocation time.
func (c *Cache) MarkKeyRevoked(ctx context.Context, keyID string) error {
	return c.client.Set(ctx, authRevokedPrefix+keyID, 1, authCacheTTL).Err()
}

// IsKeyRevoked reports whether keyID was revoked within the cache TTL.
// Redis errors report false; the store still rejects revoked keys.
func (c *Cache) IsKeyRevoked(ctx context.Context, keyID string) bool {
	n, err := c.client.Exists(ctx, authRevokedPrefix+keyID).Result()
	return err == nil && n > 0
}
