// Package events publishes order events to a Redis stream and delivers
// them to an integrator webhook from a consumer group.
package events

import (
	"errors"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
)

// EventOrderPlaced is emitted once per fulfilled order.
const EventOrderPlaced = "order.placed"

// OrderPlaced is both the stream entry and the webhook body.
type OrderPlaced struct {
	Type       string `json:"type"`
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	Price      int64  `json:"price"`
	Paid       bool   `json:"paid"`
	PaymentID  string `json:"payment_id,omitempty"`
	PlacedAt   int64  `json:"placed_at"` // Unix milliseconds
}

// NewOrderPlaced builds the event for a committed order. Signatures are
// never included.
func NewOrderPlaced(order *model.Order, course *model.Course) OrderPlaced {
	event := OrderPlaced{
		Type:       EventOrderPlaced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		CourseID:   order.CourseID,
		CourseName: course.Name,
		Price:      course.Price,
		Paid:       order.IsPaid(),
		PlacedAt:   order.CreatedAt.UnixMilli(),
	}
	if order.PaymentInfo != nil {
		event.PaymentID = order.PaymentInfo.PaymentID
	}
	return event
}

// PlacedTime returns PlacedAt as a time.
func (e OrderPlaced) PlacedTime() time.Time {
	return time.UnixMilli(e.PlacedAt)
}

// Validate rejects entries the worker cannot deliver.
func (e OrderPlaced) Validate() error {
	switch {
	case e.Type != EventOrderPlaced:
		return errors.New("unknown event type")
	case e.OrderID == "":
		return errors.New("order_id is required")
	case e.UserID == "":
		return errors.New("user_id is required")
	case e.CourseID == "":
		return errors.New("course_id is required")
	case e.Price < 0:
		return errors.New("price must not be negative")
	case e.PlacedAt <= 0:
		return errors.New("placed_at must be set")
	}
	return nil
}
