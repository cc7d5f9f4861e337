package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/handler/dto"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/coursecart/fulfillment/internal/validate"
)

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID, id string) error
}

// KeyRevoker invalidates cached principals of a revoked key.
type KeyRevoker interface {
	MarkKeyRevoked(ctx context.Context, keyID string) error
}

// APIKeyHandler lets callers manage their own API keys.
type APIKeyHandler struct {
	store     APIKeyStore
	revoker   KeyRevoker
	env       string
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewAPIKeyHandler creates a new APIKeyHandler minting keys for env
// (auth.EnvLive or auth.EnvTest). revoker may be nil.
func NewAPIKeyHandler(store APIKeyStore, revoker KeyRevoker, env string, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		store:     store,
		revoker:   revoker,
		env:       env,
		validator: validate.New(),
		logger:    logger.With("component", "apikey_handler"),
		now:       time.Now,
	}
}

// Create handles POST /api/v1/api-keys. Only admins may mint admin keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeOrders}
	}
	if slices.Contains(req.Scopes, model.ScopeAdmin) && !principal.HasRole(model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only administrators can create admin keys")
		return
	}

	generated, err := auth.GenerateAPIKey(h.env)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    principal.UserID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    req.Scopes,
		Name:      req.Name,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	h.logger.InfoContext(r.Context(), "API key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("user_id", key.UserID),
	)

	writeJSON(w, http.StatusCreated, dto.CreateAPIKeyResponse{
		APIKeyResponse: dto.NewAPIKeyResponse(key),
		Key:            generated.Plaintext,
	})
}

// List handles GET /api/v1/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	keys, err := h.store.ListAPIKeysByUserID(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	out := make([]dto.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		if !k.IsRevoked() {
			out = append(out, dto.NewAPIKeyResponse(k))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "keys": out})
}

// Revoke handles DELETE /api/v1/api-keys/{keyID}. Keys owned by someone
// else are reported as not found.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if err := h.store.RevokeAPIKey(r.Context(), userID, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "API key not found or already revoked")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	if h.revoker != nil {
		if err := h.revoker.MarkKeyRevoked(r.Context(), keyID); err != nil {
			h.logger.WarnContext(r.Context(), "failed to invalidate cached principal",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.InfoContext(r.Context(), "API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", userID),
	)
	w.WriteHeader(http.StatusNoContent)
}
