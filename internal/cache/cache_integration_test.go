//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coursecart/fulfillment/internal/testutil"
)

func newIntegrationCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, redisURL, Options{OpTimeout: time.Second})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, c
}

func TestIntegrationCache_UserSnapshot(t *testing.T) {
	ctx, c := newIntegrationCache(t)

	user := testutil.NewTestUser(t)
	user.Courses = []string{"course-1"}
	if err := c.SetUser(ctx, user); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}

	got, err := c.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !got.OwnsCourse("course-1") {
		t.Errorf("expected course-1 in %v", got.Courses)
	}

	if err := c.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := c.GetUser(ctx, user.ID); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("after delete: got %v, want ErrCacheMiss", err)
	}
}

func TestIntegrationCache_OrderRateLimit(t *testing.T) {
	ctx, c := newIntegrationCache(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckOrderRateLimit(ctx, "user-1", 1, 3)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied inside the burst", i)
		}
	}

	res, err := c.CheckOrderRateLimit(ctx, "user-1", 1, 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed {
		t.Error("expected the fourth request to be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", res.RetryAfter)
	}
}
