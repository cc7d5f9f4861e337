package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursecart/fulfillment/internal/metrics"
	"github.com/coursecart/fulfillment/internal/payment"
)

// DefaultMinAmount is the smallest chargeable amount in minor units.
const DefaultMinAmount int64 = 100

// GatewayOrderConfig configures a GatewayOrderCreator.
type GatewayOrderConfig struct {
	Currency  string
	MinAmount int64
	Timeout   time.Duration
	Logger    *slog.Logger
	Metrics   metrics.Recorder
}

// GatewayOrderCreator opens payable orders at the payment gateway.
type GatewayOrderCreator struct {
	gateway    payment.Gateway
	currency   string
	minAmount  int64
	timeout    time.Duration
	logger     *slog.Logger
	metrics    metrics.Recorder
	newReceipt func() (string, error)
}

// NewGatewayOrderCreator creates a GatewayOrderCreator.
func NewGatewayOrderCreator(gateway payment.Gateway, cfg GatewayOrderConfig) *GatewayOrderCreator {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.MinAmount <= 0 {
		cfg.MinAmount = DefaultMinAmount
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &GatewayOrderCreator{
		gateway:    gateway,
		currency:   cfg.Currency,
		minAmount:  cfg.MinAmount,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.With("component", "gateway_orders"),
		metrics:    cfg.Metrics,
		newReceipt: payment.NewReceipt,
	}
}

// CreatePayableOrder opens a gateway order for amount minor units and
// returns the provider's reference untouched.
func (c *GatewayOrderCreator) CreatePayableOrder(ctx context.Context, amount int64) (*payment.GatewayOrder, error) {
	if amount <= 0 || amount < c.minAmount {
		c.metrics.IncGatewayOrder("invalid_amount")
		return nil, newError(KindInvalidAmount, fmt.Sprintf("Amount must be at least %d", c.minAmount), nil)
	}

	receipt, err := c.newReceipt()
	if err != nil {
		c.metrics.IncGatewayOrder(metrics.StatusFailed)
		return nil, newError(KindInternal, "Failed to create receipt", err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	order, err := c.gateway.CreateOrder(ctx, payment.GatewayOrderRequest{
		Amount:   amount,
		Currency: c.currency,
		Receipt:  receipt,
	})
	if err != nil {
		c.metrics.IncGatewayOrder(metrics.StatusFailed)
		c.logger.ErrorContext(ctx, "gateway order failed", "amount", amount, "receipt", receipt, "error", err)

		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) && gwErr.Description != "" {
			return nil, newError(KindGatewayError, gwErr.Description, err)
		}
		return nil, downstream(KindGatewayError, "Payment gateway error", err)
	}

	c.metrics.IncGatewayOrder(metrics.StatusSuccess)
	c.logger.InfoContext(ctx, "gateway order created", "gateway_order_id", order.ID, "amount", amount)
	return order, nil
}
