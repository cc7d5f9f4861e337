// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coursecart/fulfillment/internal/cache"
	"github.com/coursecart/fulfillment/internal/metrics"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/coursecart/fulfillment/internal/service"

	defaultPageSize = 50
	maxPageSize     = 100
)

// EntitlementStore is the durable system of record.
type EntitlementStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetCourseByID(ctx context.Context, id string) (*model.Course, error)
	GrantCourse(ctx context.Context, userID, courseID string) (*model.User, error)
	IncrementCoursePurchased(ctx context.Context, id string) (int64, error)
	CreateOrder(ctx context.Context, order *model.Order) error
	ListOrders(ctx context.Context, filter repository.OrderFilter, cursor string, limit int) ([]*model.Order, string, error)
	ListAllOrders(ctx context.Context) ([]*model.Order, error)
}

// CacheMirror is the non-authoritative user snapshot cache.
type CacheMirror interface {
	SetUser(ctx context.Context, user *model.User) error
	FillUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Notifier sends the purchase email and records the in-app notification.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, user *model.User, course *model.Course) error
	RecordOrderNotification(ctx context.Context, userID, courseName string) (*model.Notification, error)
}

// PaymentVerifier checks a gateway payment signature.
type PaymentVerifier interface {
	Check(orderRef, paymentRef, signature string) error
}

// EventPublisher announces committed orders to downstream integrations.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishOrderPlaced(order *model.Order, course *model.Course)
}

type noopEvents struct{}

func (noopEvents) PublishOrderPlaced(*model.Order, *model.Course) {}

// Timeouts bound each collaborator call made by the workflow.
type Timeouts struct {
	Store time.Duration
	Cache time.Duration
	Mail  time.Duration
}

// OrderWorkflowConfig carries optional workflow dependencies.
type OrderWorkflowConfig struct {
	Timeouts Timeouts
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	Tracer   trace.Tracer
	Events   EventPublisher
}

// OrderWorkflow fulfills course purchases.
type OrderWorkflow struct {
	store    EntitlementStore
	mirror   CacheMirror
	notifier Notifier
	verifier PaymentVerifier
	timeouts Timeouts
	logger   *slog.Logger
	metrics  metrics.Recorder
	tracer   trace.Tracer
	events   EventPublisher
	now      func() time.Time
}

// NewOrderWorkflow creates an OrderWorkflow.
func NewOrderWorkflow(store EntitlementStore, mirror CacheMirror, notifier Notifier, verifier PaymentVerifier, cfg OrderWorkflowConfig) *OrderWorkflow {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Events == nil {
		cfg.Events = noopEvents{}
	}
	return &OrderWorkflow{
		store:    store,
		mirror:   mirror,
		notifier: notifier,
		verifier: verifier,
		timeouts: cfg.Timeouts,
		logger:   cfg.Logger.With("component", "order_workflow"),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		events:   cfg.Events,
		now:      time.Now,
	}
}

// PlaceOrderInput defines input for placing an order.
// A nil Payment means the grant carries no monetary payment.
type PlaceOrderInput struct {
	CourseID string
	UserID   string
	Payment  *model.PaymentInfo
}

// PlaceOrder runs the fulfillment steps in order and stops at the first
// failure. Steps before the confirmation mail only read state. Later steps
// commit one by one and are not rolled back when a subsequent step fails.
func (w *OrderWorkflow) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order *model.Order, err error) {
	start := w.now()
	ctx, span := w.tracer.Start(ctx, "OrderWorkflow.PlaceOrder", trace.WithAttributes(
		attribute.String("course.id", in.CourseID),
		attribute.String("user.id", in.UserID),
		attribute.Bool("payment.present", in.Payment != nil),
	))
	defer func() {
		w.metrics.ObserveOrderDuration(time.Since(start))
		if err != nil {
			kind := KindOf(err)
			w.metrics.IncOrderFailed(string(kind))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(kind))
			w.logFailure(ctx, in, err)
		} else {
			w.metrics.IncOrderPlaced()
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if in.CourseID == "" || in.UserID == "" {
		return nil, newError(KindInvalidRequest, "courseId and userId are required", nil)
	}

	// 1. Verify payment.
	if in.Payment != nil {
		span.AddEvent("verify_payment")
		if err := w.verifier.Check(in.Payment.OrderID, in.Payment.PaymentID, in.Payment.Signature); err != nil {
			return nil, newError(KindPaymentUnauthorized, "Payment not authorized!", err)
		}
	}

	// 2. Load user.
	span.AddEvent("load_user")
	user, err := w.loadUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	// 3. Check entitlement.
	if user.OwnsCourse(in.CourseID) {
		return nil, newError(KindAlreadyOwned, "You have already purchased this course", nil)
	}

	// 4. Load course.
	span.AddEvent("load_course")
	course, err := w.loadCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}

	// 5. Confirmation mail gates every mutation below.
	span.AddEvent("send_confirmation")
	if err := w.sendConfirmation(ctx, user, course); err != nil {
		return nil, err
	}

	// 6. Grant, then mirror the authoritative snapshot.
	span.AddEvent("grant_entitlement")
	granted, err := w.grant(ctx, user.ID, course.ID)
	if err != nil {
		return nil, err
	}
	w.refreshMirror(ctx, granted)

	// 7. In-app notification record.
	span.AddEvent("record_notification")
	storeCtx, cancel := withTimeout(ctx, w.timeouts.Store)
	_, err = w.notifier.RecordOrderNotification(storeCtx, user.ID, course.Name)
	cancel()
	if err != nil {
		return nil, downstream(KindInternal, "Failed to record order notification", err)
	}

	// 8. Purchase counter.
	span.AddEvent("increment_purchased")
	storeCtx, cancel = withTimeout(ctx, w.timeouts.Store)
	_, err = w.store.IncrementCoursePurchased(storeCtx, course.ID)
	cancel()
	if err != nil {
		return nil, downstream(KindInternal, "Failed to update course", err)
	}

	// 9. Durable proof of purchase.
	span.AddEvent("create_order")
	order = &model.Order{
		ID:          ulid.Make().String(),
		CourseID:    course.ID,
		UserID:      user.ID,
		PaymentInfo: in.Payment,
		CreatedAt:   w.now().UTC(),
	}
	storeCtx, cancel = withTimeout(ctx, w.timeouts.Store)
	err = w.store.CreateOrder(storeCtx, order)
	cancel()
	if err != nil {
		return nil, downstream(KindInternal, "Failed to create order", err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	w.events.PublishOrderPlaced(order, course)
	w.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"course_id", order.CourseID,
		"user_id", order.UserID,
		"paid", order.IsPaid(),
	)
	return order, nil
}

func (w *OrderWorkflow) loadUser(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, w.timeouts.Store)
	defer cancel()

	user, err := w.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(KindNotFound, "User not found", err)
		}
		return nil, downstream(KindInternal, "Failed to load user", err)
	}
	return user, nil
}

func (w *OrderWorkflow) loadCourse(ctx context.Context, courseID string) (*model.Course, error) {
	ctx, cancel := withTimeout(ctx, w.timeouts.Store)
	defer cancel()

	course, err := w.store.GetCourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			return nil, newError(KindNotFound, "Course not found", err)
		}
		return nil, downstream(KindInternal, "Failed to load course", err)
	}
	return course, nil
}

func (w *OrderWorkflow) sendConfirmation(ctx context.Context, user *model.User, course *model.Course) error {
	ctx, cancel := withTimeout(ctx, w.timeouts.Mail)
	defer cancel()

	start := time.Now()
	err := w.notifier.SendOrderConfirmation(ctx, user, course)
	w.metrics.ObserveMailDuration(time.Since(start))
	if err != nil {
		w.metrics.IncMailSent(metrics.StatusFailed)
		return downstream(KindNotificationFailed, "Failed to send order confirmation", err)
	}
	w.metrics.IncMailSent(metrics.StatusSuccess)
	return nil
}

func (w *OrderWorkflow) grant(ctx context.Context, userID, courseID string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, w.timeouts.Store)
	defer cancel()

	user, err := w.store.GrantCourse(ctx, userID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseAlreadyOwned):
			// A concurrent order for the same course committed first.
			return nil, newError(KindAlreadyOwned, "You have already purchased this course", err)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, newError(KindNotFound, "User not found", err)
		default:
			return nil, downstream(KindInternal, "Failed to grant course", err)
		}
	}
	return user, nil
}

// refreshMirror writes the post-grant snapshot to the cache. Failures leave
// the cache stale until the next read-repair and do not fail the order.
func (w *OrderWorkflow) refreshMirror(ctx context.Context, user *model.User) {
	ctx, cancel := withTimeout(ctx, w.timeouts.Cache)
	defer cancel()

	if err := w.mirror.SetUser(ctx, user); err != nil {
		w.metrics.IncCacheRefresh(metrics.StatusFailed)
		w.logger.WarnContext(ctx, "cache refresh failed",
			"user_id", user.ID,
			"error", err,
		)
		return
	}
	w.metrics.IncCacheRefresh(metrics.StatusSuccess)
}

func (w *OrderWorkflow) logFailure(ctx context.Context, in PlaceOrderInput, err error) {
	kind := KindOf(err)
	attrs := []any{
		"kind", string(kind),
		"course_id", in.CourseID,
		"user_id", in.UserID,
		"error", err,
	}

	switch kind {
	case KindNotificationFailed:
		w.logger.WarnContext(ctx, "order blocked: confirmation mail failed, entitlement not granted; review whether mail should gate the grant", attrs...)
	case KindInternal, KindTimeout:
		w.logger.ErrorContext(ctx, "order failed", attrs...)
	default:
		w.logger.InfoContext(ctx, "order rejected", attrs...)
	}
}

// GetProfile returns the user snapshot, preferring the cache mirror. On a
// miss the store is read and the cache filled, unless a grant has written
// a snapshot in the meantime.
func (w *OrderWorkflow) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	cacheCtx, cancel := withTimeout(ctx, w.timeouts.Cache)
	user, err := w.mirror.GetUser(cacheCtx, userID)
	cancel()
	if err == nil {
		w.metrics.IncProfileCacheHit()
		return user, nil
	}
	w.metrics.IncProfileCacheMiss()
	if !errors.Is(err, cache.ErrCacheMiss) {
		w.logger.WarnContext(ctx, "cache read failed, falling back to store", "user_id", userID, "error", err)
	}

	user, err = w.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fillCtx, cancel := withTimeout(ctx, w.timeouts.Cache)
	defer cancel()
	if err := w.mirror.FillUser(fillCtx, user); err != nil {
		w.logger.WarnContext(ctx, "cache fill failed", "user_id", userID, "error", err)
	}
	return user, nil
}

// ListOrders returns one page of orders, newest first.
func (w *OrderWorkflow) ListOrders(ctx context.Context, cursor string, limit int) ([]*model.Order, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	ctx, cancel := withTimeout(ctx, w.timeouts.Store)
	defer cancel()

	orders, next, err := w.store.ListOrders(ctx, repository.OrderFilter{}, cursor, limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, "", newError(KindInvalidRequest, "Invalid pagination cursor", err)
		}
		return nil, "", downstream(KindInternal, "Failed to list orders", err)
	}
	return orders, next, nil
}

// ListAllOrders returns every order, newest first.
func (w *OrderWorkflow) ListAllOrders(ctx context.Context) ([]*model.Order, error) {
	ctx, cancel := withTimeout(ctx, w.timeouts.Store)
	defer cancel()

	orders, err := w.store.ListAllOrders(ctx)
	if err != nil {
		return nil, downstream(KindInternal, "Failed to list orders", err)
	}
	return orders, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
