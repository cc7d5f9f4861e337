// Package testutil holds the fixtures shared by the integration and e2e
// suites: environment gating, a Postgres advisory lock, schema reset and
// model factories.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coursecart/fulfillment/internal/model"
)

// dbLockKey serializes every test binary that resets the shared schema.
const dbLockKey int64 = 0x636f75727365 // "course"

// RequireEnv returns key's value, skipping the test when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}

// AcquireDBLock holds a session advisory lock on one pooled connection
// until the returned func is called.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("take advisory lock: %w", err)
	}
	return func() error {
		defer conn.Release()
		_, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", dbLockKey)
		return err
	}, nil
}

// ResetSchema runs every down migration newest first, then every up
// migration oldest first.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "migrations")

	downs, _ := filepath.Glob(filepath.Join(dir, "*.down.sql"))
	ups, _ := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if len(ups) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	slices.Sort(downs)
	slices.Reverse(downs)
	slices.Sort(ups)

	for _, path := range append(downs, ups...) {
		sql, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// FlushRedis empties the selected Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot walks up from the working directory to the go.mod.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above working directory")
		}
		dir = parent
	}
}

// UniqueID returns prefix joined to a fresh lowercase ULID.
func UniqueID(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String())
}

// NewTestUser returns a learner who owns nothing yet.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC()
	id := UniqueID("user")
	return &model.User{
		ID:        id,
		Name:      "Test Learner",
		Email:     strings.ReplaceAll(id, "-", "") + "@example.com",
		Role:      model.RoleUser,
		Courses:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewTestCourse(t testing.TB, purchased int64) *model.Course {
	t.Helper()
	now := time.Now().UTC()
	return &model.Course{
		ID:        UniqueID("course"),
		Name:      "Concurrency in Practice",
		Price:     499,
		Purchased: purchased,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAPIKey returns an orders-scoped key row. Its hash is a
// placeholder, so it cannot authenticate.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	id := UniqueID("key")
	return &model.APIKey{
		ID:        id,
		UserID:    userID,
		KeyHash:   "unusable-" + id,
		KeyPrefix: id[len(id)-8:],
		Scopes:    []string{model.ScopeOrders},
		Name:      "Test Key",
		CreatedAt: time.Now().UTC(),
	}
}
