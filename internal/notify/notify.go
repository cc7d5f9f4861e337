// Package notify emits purchase confirmations: the customer email and the
// in-app notification record.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/coursecart/fulfillment/internal/mail"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/oklog/ulid/v2"
)

const (
	// ConfirmationSubject is the subject line of the purchase email.
	ConfirmationSubject = "Order Confirmation"
	// ConfirmationTemplate names the embedded mail template.
	ConfirmationTemplate = "order-confirmation"
	// NotificationTitle is the title of the in-app order notification.
	NotificationTitle = "New Order"

	dateLayout = "January 2, 2006"
)

// NotificationStore persists notification records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Confirmation is the data rendered into the confirmation template.
type Confirmation struct {
	OrderID string
	Name    string
	Price   int64
	Date    string
}

// Emitter sends confirmations and records notifications.
type Emitter struct {
	mailer mail.Mailer
	store  NotificationStore
	now    func() time.Time
}

// NewEmitter creates an Emitter.
func NewEmitter(mailer mail.Mailer, store NotificationStore) *Emitter {
	return &Emitter{
		mailer: mailer,
		store:  store,
		now:    time.Now,
	}
}

// SendOrderConfirmation emails user the purchase details for course.
func (e *Emitter) SendOrderConfirmation(ctx context.Context, user *model.User, course *model.Course) error {
	msg := mail.Message{
		To:       user.Email,
		Subject:  ConfirmationSubject,
		Template: ConfirmationTemplate,
		Data: Confirmation{
			OrderID: course.ShortID(),
			Name:    course.Name,
			Price:   course.Price,
			Date:    e.now().Format(dateLayout),
		},
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	return nil
}

// RecordOrderNotification stores an unread "New Order" notification for
// userID referencing courseName.
func (e *Emitter) RecordOrderNotification(ctx context.Context, userID, courseName string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Title:     NotificationTitle,
		Message:   "You have a new order from " + courseName,
		Status:    model.NotificationUnread,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("record order notification: %w", err)
	}
	return n, nil
}
