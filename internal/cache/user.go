package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// userCachePrefix is the Redis key prefix for user snapshots.
	userCachePrefix = "user:"
	// userFillTTL bounds snapshots written by profile reads.
	userFillTTL = 10 * time.Minute
)

// ErrCacheMiss is returned when no usable snapshot exists.
var ErrCacheMiss = errors.New("cache miss")

// SetUser stores a JSON snapshot of user. Entries never expire; they are
// overwritten on every entitlement change.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}
	if err := c.client.Set(ctx, userCachePrefix+user.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("set user snapshot: %w", err)
	}
	return nil
}

// FillUser stores user only when no snapshot exists yet. Read paths use it
// so that a snapshot loaded before a concurrent grant cannot replace the
// post-grant one. Filled entries expire after userFillTTL; the next SetUser
// clears the expiry.
func (c *Cache) FillUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}
	if err := c.client.SetNX(ctx, userCachePrefix+user.ID, data, userFillTTL).Err(); err != nil {
		return fmt.Errorf("fill user snapshot: %w", err)
	}
	return nil
}

// GetUser returns the cached snapshot for userID, or ErrCacheMiss when the
// entry is absent or cannot be decoded.
func (c *Cache) GetUser(ctx context.Context, userID string) (*model.User, error) {
	data, err := c.client.Get(ctx, userCachePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get user snapshot: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}
	return &user, nil
}

// DeleteUser drops the snapshot for userID.
func (c *Cache) DeleteUser(ctx context.Context, userID string) error {
	return c.client.Del(ctx, userCachePrefix+userID).Err()
}
