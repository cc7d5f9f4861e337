package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/handler/dto"
	"github.com/coursecart/fulfillment/internal/model"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// ProfileReader returns the caller's user snapshot.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// NotificationLister lists a user's notifications, newest first.
type NotificationLister interface {
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// AccountHandler serves the caller's own resources.
type AccountHandler struct {
	profiles      ProfileReader
	notifications NotificationLister
	logger        *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(profiles ProfileReader, notifications NotificationLister, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		profiles:      profiles,
		notifications: notifications,
		logger:        logger.With("component", "account_handler"),
	}
}

// Me handles GET /api/v1/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	user, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProfileResponse{Success: true, User: user})
}

// Notifications handles GET /api/v1/notifications?limit=N.
func (h *AccountHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	limit, ok := parseLimit(r, defaultNotificationLimit, maxNotificationLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidation, "limit must be a positive integer")
		return
	}

	items, err := h.notifications.ListNotificationsByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list notifications", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}
	if items == nil {
		items = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, dto.NotificationListResponse{Success: true, Notifications: items})
}

// parseLimit reads ?limit, applying def when absent and clamping to max.
// ok is false for a present but non-positive or non-numeric value.
func parseLimit(r *http.Request, def, max int) (limit int, ok bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}
