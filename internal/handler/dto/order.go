// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"

	"github.com/coursecart/fulfillment/internal/model"
)

// CreateOrderRequest is the body of POST /api/v1/create-order.
type CreateOrderRequest struct {
	CourseID    string              `json:"courseId" validate:"required,entity_id"`
	PaymentInfo *PaymentInfoRequest `json:"payment_info,omitempty"`
}

// PaymentInfoRequest carries the gateway's payment claim. Fields are not
// validated here; an incomplete claim fails signature verification.
type PaymentInfoRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Payment converts the claim to the domain type. Nil stays nil.
func (p *PaymentInfoRequest) Payment() *model.PaymentInfo {
	if p == nil {
		return nil
	}
	return model.NewRazorpayPayment(p.OrderID, p.PaymentID, p.Signature)
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Success bool         `json:"success"`
	Order   *model.Order `json:"order"`
}

// OrderListResponse wraps a list of orders. NextCursor is set only for
// paged requests with more results.
type OrderListResponse struct {
	Success    bool           `json:"success"`
	Orders     []*model.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GatewayOrderResponse wraps the provider's order document verbatim.
type GatewayOrderResponse struct {
	Success bool            `json:"success"`
	Order   json.RawMessage `json:"order"`
}

// RazorpayKeyResponse exposes the gateway's public key id.
type RazorpayKeyResponse struct {
	RazorpayKey string `json:"razorpayKey"`
}

// ProfileResponse wraps the caller's user snapshot.
type ProfileResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
}

// NotificationListResponse wraps the caller's notifications.
type NotificationListResponse struct {
	Success       bool                  `json:"success"`
	Notifications []*model.Notification `json:"notifications"`
}
