package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/handler/dto"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/payment"
	"github.com/coursecart/fulfillment/internal/service"
	"github.com/coursecart/fulfillment/internal/validate"
)

// OrderPlacer runs the fulfillment workflow.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*model.Order, error)
}

// PayableOrderCreator pre-creates gateway orders.
type PayableOrderCreator interface {
	CreatePayableOrder(ctx context.Context, amount int64) (*payment.GatewayOrder, error)
}

// OrderHandler serves the purchase endpoints.
type OrderHandler struct {
	orders    OrderPlacer
	gateway   PayableOrderCreator
	keyID     string
	validator *validate.Validator
	logger    *slog.Logger
}

// NewOrderHandler creates a new OrderHandler. keyID is the gateway's
// public key id returned by RazorpayKey.
func NewOrderHandler(orders OrderPlacer, gateway PayableOrderCreator, keyID string, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		gateway:   gateway,
		keyID:     keyID,
		validator: validate.New(),
		logger:    logger.With("component", "order_handler"),
	}
}

// CreateOrder handles POST /api/v1/create-order.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	var req dto.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderInput{
		CourseID: req.CourseID,
		UserID:   userID,
		Payment:  req.PaymentInfo.Payment(),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.OrderResponse{Success: true, Order: order})
}

// RazorpayKey handles GET /api/v1/razorpay-key.
func (h *OrderHandler) RazorpayKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.RazorpayKeyResponse{RazorpayKey: h.keyID})
}

// CreateRazorpayOrder handles POST /api/v1/create-razorpay-order.
// The body must be {"amount": <integer minor units>}; any other shape is
// rejected as an invalid amount.
func (h *OrderHandler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid request body")
		return
	}

	var amount int64
	if len(body.Amount) == 0 || json.Unmarshal(body.Amount, &amount) != nil {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidAmount), "Amount must be an integer")
		return
	}

	order, err := h.gateway.CreatePayableOrder(r.Context(), amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.GatewayOrderResponse{Success: true, Order: order.Raw})
}
