package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/coursecart/fulfillment/internal/cache"
	"github.com/coursecart/fulfillment/internal/mail"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/repository"
)

// memStore is an in-memory EntitlementStore and notification store.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*model.User
	courses       map[string]*model.Course
	orders        []*model.Order
	notifications []*model.Notification

	failGrant        error
	failNotification error
	failIncrement    error
	failCreateOrder  error
	blockGrant       bool
	blockList        bool

	// afterUserRead runs once, after the next GetUserByID has taken its copy.
	afterUserRead func()
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*model.User{},
		courses: map[string]*model.Course{},
	}
}

func (s *memStore) addUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) addCourse(c *model.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

func (s *memStore) user(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *s.users[id]
	u.Courses = slices.Clone(u.Courses)
	return u
}

func (s *memStore) course(id string) model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.courses[id]
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, repository.ErrUserNotFound
	}
	clone := *u
	clone.Courses = slices.Clone(u.Courses)
	hook := s.afterUserRead
	s.afterUserRead = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &clone, nil
}

func (s *memStore) GetCourseByID(_ context.Context, id string) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *memStore) GrantCourse(ctx context.Context, userID, courseID string) (*model.User, error) {
	if s.blockGrant {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.failGrant != nil {
		return nil, s.failGrant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.OwnsCourse(courseID) {
		return nil, repository.ErrCourseAlreadyOwned
	}
	updated := u.WithCourse(courseID)
	s.users[userID] = updated
	clone := *updated
	clone.Courses = slices.Clone(updated.Courses)
	return &clone, nil
}

func (s *memStore) IncrementCoursePurchased(_ context.Context, id string) (int64, error) {
	if s.failIncrement != nil {
		return 0, s.failIncrement
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return 0, repository.ErrCourseNotFound
	}
	c.Purchased++
	return c.Purchased, nil
}

func (s *memStore) CreateOrder(_ context.Context, order *model.Order) error {
	if s.failCreateOrder != nil {
		return s.failCreateOrder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

func (s *memStore) ListOrders(_ context.Context, _ repository.OrderFilter, cursor string, limit int) ([]*model.Order, string, error) {
	if cursor == "bogus" {
		return nil, "", repository.ErrInvalidCursor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.orders)
	slices.Reverse(out)
	if len(out) > limit {
		return out[:limit], "next", nil
	}
	return out, "", nil
}

func (s *memStore) ListAllOrders(ctx context.Context) ([]*model.Order, error) {
	if s.blockList {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.orders)
	slices.Reverse(out)
	return out, nil
}

func (s *memStore) CreateNotification(_ context.Context, n *model.Notification) error {
	if s.failNotification != nil {
		return s.failNotification
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memStore) counts() (orders, notifications int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders), len(s.notifications)
}

// memMirror is an in-memory CacheMirror.
type memMirror struct {
	mu      sync.Mutex
	entries map[string]*model.User
	failSet error
	failGet error
}

func newMemMirror() *memMirror {
	return &memMirror{entries: map[string]*model.User{}}
}

func (m *memMirror) SetUser(_ context.Context, u *model.User) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[u.ID] = cloneUser(u)
	return nil
}

func (m *memMirror) FillUser(_ context.Context, u *model.User) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[u.ID]; !ok {
		m.entries[u.ID] = cloneUser(u)
	}
	return nil
}

func (m *memMirror) GetUser(_ context.Context, id string) (*model.User, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.entries[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cloneUser(u), nil
}

func cloneUser(u *model.User) *model.User {
	clone := *u
	clone.Courses = slices.Clone(u.Courses)
	return &clone
}

// stubMailer records messages or fails.
type stubMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errSMTP = errors.New("smtp: 421 service not available")

func fmtGrantConflict() error {
	return fmt.Errorf("grant: %w", repository.ErrCourseAlreadyOwned)
}

// recordingEvents captures published orders.
type recordingEvents struct {
	mu     sync.Mutex
	orders []*model.Order
}

func (r *recordingEvents) PublishOrderPlaced(order *model.Order, _ *model.Course) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
}

func (r *recordingEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}
