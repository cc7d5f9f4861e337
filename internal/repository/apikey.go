package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// ErrAPIKeyNotFound covers missing, foreign and already revoked keys.
var ErrAPIKeyNotFound = errors.New("API key not found")

const selectAPIKey = `
	SELECT id, user_id, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
	FROM api_keys`

// CreateAPIKey stores a freshly generated key. Only the hash is persisted.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, pq.Array(scopes), key.Name, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert API key %s: %w", key.ID, err)
	}
	return nil
}

// GetAPIKeysByPrefix returns the live keys sharing prefix. The caller
// compares hashes to pick the right one.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	rows, err := r.db.Query(ctx, selectAPIKey+` WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key prefix: %w", err)
	}
	return collectAPIKeys(rows)
}

// ListAPIKeysByUserID returns every key userID ever created, revoked
// ones included, newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	rows, err := r.db.Query(ctx, selectAPIKey+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys for %s: %w", userID, err)
	}
	return collectAPIKeys(rows)
}

// RevokeAPIKey revokes id if userID owns it and it is still live.
func (r *Repository) RevokeAPIKey(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE api_keys SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke API key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps last_used_at. Stamps less than a minute
// old are left alone so a busy key does not write on every request.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE api_keys SET last_used_at = NOW()
		WHERE id = $1 AND (last_used_at IS NULL OR last_used_at < NOW() - INTERVAL '1 minute')`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch API key %s: %w", id, err)
	}
	return nil
}

// UpdateAPIKeyHash replaces the stored hash of a live key, used when the
// hashing cost settings change.
func (r *Repository) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE api_keys SET key_hash = $2 WHERE id = $1 AND revoked_at IS NULL`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to rehash API key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*model.APIKey, error) {
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		var k model.APIKey
		err := row.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, pq.Array(&k.Scopes),
			&k.Name, &k.RevokedAt, &k.LastUsedAt, &k.CreatedAt)
		return &k, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys: %w", err)
	}
	return keys, nil
}
