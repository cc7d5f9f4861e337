package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/model"
)

const (
	// DefaultMinAuthDuration is the minimum time spent verifying an API key
	// so that failures and successes take the same time.
	DefaultMinAuthDuration = 200 * time.Millisecond

	lastUsedTimeout = 5 * time.Second
)

// unauthorizedMessage is shared by all auth failures to prevent enumeration.
const unauthorizedMessage = "Invalid or missing credentials"

// KeyStore looks up API keys.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error
}

// PrincipalCache caches principals resolved from API keys.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, cacheKey string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, cacheKey string, principal *model.Principal) error
	IsKeyRevoked(ctx context.Context, keyID string) bool
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(raw string) (*model.Principal, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  PrincipalCache
	Tokens TokenVerifier
	// MinDuration pads API key verification. Zero uses DefaultMinAuthDuration.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// A Bearer credential shaped like an API key is verified against the key
// store; any other Bearer credential is treated as an access token.
// X-API-Key is accepted as an alternative header for keys.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = DefaultMinAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r)
			if credential == "" {
				logAuthFailure(cfg.Logger, r, "missing_credential")
				writeError(w, http.StatusUnauthorized, codeUnauthorized, unauthorizedMessage)
				return
			}

			var (
				principal *model.Principal
				reason    string
			)
			if auth.LooksLikeAPIKey(credential) {
				principal, reason = authenticateKey(r, cfg, credential, minDuration)
			} else {
				principal, reason = authenticateToken(cfg, credential)
			}
			if principal == nil {
				logAuthFailure(cfg.Logger, r, reason)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, unauthorizedMessage)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticateToken(cfg AuthConfig, raw string) (*model.Principal, string) {
	if cfg.Tokens == nil {
		return nil, "tokens_disabled"
	}
	principal, err := cfg.Tokens.Verify(raw)
	if err != nil {
		return nil, "invalid_token"
	}
	return principal, ""
}

func authenticateKey(r *http.Request, cfg AuthConfig, key string, minDuration time.Duration) (*model.Principal, string) {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed < minDuration {
			time.Sleep(minDuration - elapsed)
		}
	}()

	ctx := r.Context()
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		cached, _ := cfg.Cache.GetPrincipal(ctx, cacheKey)
		if cached != nil && !cfg.Cache.IsKeyRevoked(ctx, cached.KeyID) {
			return cached, ""
		}
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, "store_error"
	}

	// Prefixes can collide; check every candidate.
	var matched *model.APIKey
	for _, k := range candidates {
		if ok, err := auth.VerifySecret(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}

	principal := matched.Principal()
	if cfg.Cache != nil {
		_ = cfg.Cache.SetPrincipal(ctx, cacheKey, principal)
	}

	go func(k *model.APIKey) {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastUsedTimeout)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(bg, k.ID)

		if !auth.NeedsRehash(k.KeyHash, auth.DefaultHashParams) {
			return
		}
		hash, err := auth.HashSecret(key)
		if err == nil {
			err = cfg.Keys.UpdateAPIKeyHash(bg, k.ID, hash)
		}
		if err != nil {
			cfg.Logger.Warn("failed to upgrade API key hash",
				slog.String("key_id", k.ID),
				slog.String("error", err.Error()),
			)
		}
	}(matched)

	return principal, ""
}

// extractCredential reads "Authorization: Bearer <credential>", falling
// back to "X-API-Key: <key>".
func extractCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
