package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/payment"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/coursecart/fulfillment/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrders struct {
	mu        sync.Mutex
	err       error
	lastInput service.PlaceOrderInput
	orders    []*model.Order
	users     map[string]*model.User
	pageSize  int
	cursor    string
}

func (f *fakeOrders) PlaceOrder(_ context.Context, in service.PlaceOrderInput) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	order := &model.Order{
		ID:          "01ORDER",
		CourseID:    in.CourseID,
		UserID:      in.UserID,
		PaymentInfo: in.Payment,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeOrders) GetProfile(_ context.Context, userID string) (*model.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, &service.Error{Kind: service.KindNotFound, Message: "User not found"}
}

func (f *fakeOrders) ListOrders(_ context.Context, cursor string, limit int) ([]*model.Order, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, "", f.err
	}
	f.pageSize = limit
	f.cursor = cursor
	if limit < len(f.orders) {
		return f.orders[:limit], "next-page", nil
	}
	return f.orders, "", nil
}

func (f *fakeOrders) ListAllOrders(_ context.Context) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

type fakeGateway struct {
	err    error
	amount int64
	calls  int
}

func (f *fakeGateway) CreatePayableOrder(_ context.Context, amount int64) (*payment.GatewayOrder, error) {
	f.calls++
	f.amount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &payment.GatewayOrder{
		ID:  "order_Gw1",
		Raw: json.RawMessage(fmt.Sprintf(`{"id":"order_Gw1","amount":%d,"currency":"INR","status":"created"}`, amount)),
	}, nil
}

type fakeNotifications struct {
	items map[string][]*model.Notification
	limit int
}

func (f *fakeNotifications) ListNotificationsByUser(_ context.Context, userID string, limit int) ([]*model.Notification, error) {
	f.limit = limit
	return f.items[userID], nil
}

type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*model.APIKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*model.APIKey)}
}

func (s *fakeKeyStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *fakeKeyStore) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) RevokeAPIKey(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != userID || k.IsRevoked() {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}

func (s *fakeKeyStore) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && !k.IsRevoked() {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) UpdateAPIKeyLastUsed(context.Context, string) error {
	return nil
}

func (s *fakeKeyStore) UpdateAPIKeyHash(context.Context, string, string) error {
	return nil
}
