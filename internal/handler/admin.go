package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursecart/fulfillment/internal/handler/dto"
	"github.com/coursecart/fulfillment/internal/model"
)

const maxOrderPageSize = 100

// OrderLister lists orders for administrators.
type OrderLister interface {
	ListOrders(ctx context.Context, cursor string, limit int) ([]*model.Order, string, error)
	ListAllOrders(ctx context.Context) ([]*model.Order, error)
}

// AdminKeyLister lists API keys belonging to a user.
type AdminKeyLister interface {
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// AdminHandler provides admin-only endpoints.
type AdminHandler struct {
	orders OrderLister
	keys   AdminKeyLister
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orders OrderLister, keys AdminKeyLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		orders: orders,
		keys:   keys,
		logger: logger.With("component", "admin_handler"),
	}
}

// GetOrders handles GET /api/v1/get-orders. Without query parameters the
// full order list is returned; limit or cursor switch to a single page.
func (h *AdminHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("limit") && !q.Has("cursor") {
		orders, err := h.orders.ListAllOrders(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.OrderListResponse{Success: true, Orders: nonNilOrders(orders)})
		return
	}

	limit, ok := parseLimit(r, 0, maxOrderPageSize)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidation, "limit must be a positive integer")
		return
	}

	orders, next, err := h.orders.ListOrders(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OrderListResponse{
		Success:    true,
		Orders:     nonNilOrders(orders),
		NextCursor: next,
	})
}

// ListUserAPIKeys handles GET /api/v1/admin/users/{userID}/api-keys.
func (h *AdminHandler) ListUserAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "userID is required")
		return
	}

	keys, err := h.keys.ListAPIKeysByUserID(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list API keys",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
		return
	}

	out := make([]dto.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, dto.NewAPIKeyResponse(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "keys": out})
}

func nonNilOrders(orders []*model.Order) []*model.Order {
	if orders == nil {
		return []*model.Order{}
	}
	return orders
}
