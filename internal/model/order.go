package model

import "time"

// PaymentProvider identifies the gateway that authorized a payment.
type PaymentProvider string

// ProviderRazorpay is currently the only supported provider.
const ProviderRazorpay PaymentProvider = "razorpay"

// PaymentInfo is the payment claim attached to an order.
// A nil *PaymentInfo means the grant carries no monetary payment.
type PaymentInfo struct {
	Provider  PaymentProvider `json:"provider"`
	OrderID   string          `json:"razorpay_order_id"`
	PaymentID string          `json:"razorpay_payment_id"`
	Signature string          `json:"razorpay_signature"`
}

// NewRazorpayPayment builds a Razorpay payment claim.
func NewRazorpayPayment(orderID, paymentID, signature string) *PaymentInfo {
	return &PaymentInfo{
		Provider:  ProviderRazorpay,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
	}
}

// Order is the durable proof that a user bought a course.
// Orders are immutable once created.
type Order struct {
	ID          string       `json:"id"`
	CourseID    string       `json:"course_id"`
	UserID      string       `json:"user_id"`
	PaymentInfo *PaymentInfo `json:"payment_info"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsPaid returns true when the order was backed by a gateway payment.
func (o *Order) IsPaid() bool {
	return o.PaymentInfo != nil
}
