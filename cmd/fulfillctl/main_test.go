package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/payment"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/coursecart/fulfillment/internal/validate"
)

type fakeStore struct {
	users   map[string]*model.User
	courses []*model.Course
	keys    []*model.APIKey
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*model.User{}}
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) CreateCourse(_ context.Context, course *model.Course) error {
	f.courses = append(f.courses, course)
	return nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	f.keys = append(f.keys, key)
	return nil
}

func newTestApp(s *fakeStore) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	a := &app{
		out: out,
		openStore: func(context.Context, string) (store, func(), error) {
			if s == nil {
				return nil, nil, errors.New("no store")
			}
			return s, func() {}, nil
		},
		validator: validate.New(),
		now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return a, out
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(t.Context())
}

func TestSign(t *testing.T) {
	a, out := newTestApp(nil)
	err := execute(t, a, "sign", "--order-id", "order_1", "--payment-id", "pay_1", "--secret", "s3cret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got := strings.TrimSpace(out.String())
	if !payment.NewVerifier("s3cret").Verify("order_1", "pay_1", got) {
		t.Errorf("printed signature %q does not verify", got)
	}
}

func TestSignRequiresSecret(t *testing.T) {
	a, _ := newTestApp(nil)
	err := execute(t, a, "sign", "--order-id", "order_1", "--payment-id", "pay_1", "--secret", "")
	if err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestTokenIssue(t *testing.T) {
	a, out := newTestApp(nil)
	err := execute(t, a, "token", "issue", "--user-id", "user-1", "--role", "admin", "--secret", "tok", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token issue: %v", err)
	}

	principal, err := auth.NewTokenManager("tok").Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if principal.UserID != "user-1" || principal.Role != model.RoleAdmin {
		t.Errorf("principal = %+v", principal)
	}
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no user", []string{"token", "issue", "--secret", "tok"}},
		{"bad role", []string{"token", "issue", "--user-id", "u", "--role", "root", "--secret", "tok"}},
		{"zero ttl", []string{"token", "issue", "--user-id", "u", "--ttl", "0s", "--secret", "tok"}},
		{"no secret", []string{"token", "issue", "--user-id", "u", "--secret", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(nil)
			if err := execute(t, a, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseScopes(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"", []string{model.ScopeOrders}, false},
		{"orders", []string{"orders"}, false},
		{" orders , admin ,orders", []string{"orders", "admin"}, false},
		{"orders,root", nil, true},
	}
	for _, tt := range tests {
		got, err := parseScopes(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScopes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("parseScopes(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAPIKeyCreateBootstrapsUser(t *testing.T) {
	s := newFakeStore()
	a, out := newTestApp(s)

	err := execute(t, a, "api-key", "create",
		"--user-id", "admin-1", "--email", "ops@example.com", "--scopes", "orders,admin", "--format", "json")
	if err != nil {
		t.Fatalf("api-key create: %v", err)
	}

	user, ok := s.users["admin-1"]
	if !ok {
		t.Fatal("user was not created")
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin for admin-scoped key", user.Role)
	}

	var printed keyOutput
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(s.keys) != 1 {
		t.Fatalf("stored keys = %d, want 1", len(s.keys))
	}
	stored := s.keys[0]
	if printed.KeyID != stored.ID || printed.KeyPrefix != stored.KeyPrefix {
		t.Errorf("output %+v does not match stored key %+v", printed, stored)
	}
	ok, err = auth.VerifySecret(printed.Key, stored.KeyHash)
	if err != nil || !ok {
		t.Errorf("printed key does not match stored hash: ok=%v err=%v", ok, err)
	}
}

func TestAPIKeyCreateExistingUser(t *testing.T) {
	s := newFakeStore()
	s.users["user-1"] = &model.User{ID: "user-1", Email: "a@example.com", Role: model.RoleUser}
	a, out := newTestApp(s)

	if err := execute(t, a, "api-key", "create", "--user-id", "user-1", "--env", "test"); err != nil {
		t.Fatalf("api-key create: %v", err)
	}
	if !strings.HasPrefix(out.String(), "pk_test_") {
		t.Errorf("plain output = %q, want a test key", out.String())
	}
}

func TestAPIKeyCreateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing user without email", []string{"api-key", "create", "--user-id", "ghost"}},
		{"email mismatch", []string{"api-key", "create", "--user-id", "user-1", "--email", "b@example.com"}},
		{"email taken", []string{"api-key", "create", "--user-id", "user-2", "--email", "a@example.com"}},
		{"bad scope", []string{"api-key", "create", "--user-id", "user-1", "--scopes", "root"}},
		{"bad format", []string{"api-key", "create", "--user-id", "user-1", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeStore()
			s.users["user-1"] = &model.User{ID: "user-1", Email: "a@example.com", Role: model.RoleUser}
			a, _ := newTestApp(s)

			if err := execute(t, a, tt.args...); err == nil {
				t.Error("expected error")
			}
			if len(s.keys) != 0 {
				t.Errorf("stored %d keys on failure", len(s.keys))
			}
		})
	}
}

func TestUserAndCourseCreate(t *testing.T) {
	s := newFakeStore()
	a, _ := newTestApp(s)

	if err := execute(t, a, "user", "create", "--id", "user-9", "--email", "nine@example.com", "--name", "Nine"); err != nil {
		t.Fatalf("user create: %v", err)
	}
	if u := s.users["user-9"]; u == nil || u.Role != model.RoleUser || u.Name != "Nine" {
		t.Errorf("stored user = %+v", u)
	}

	if err := execute(t, a, "course", "create", "--id", "course-1", "--name", "Go", "--price", "49900"); err != nil {
		t.Fatalf("course create: %v", err)
	}
	if len(s.courses) != 1 || s.courses[0].Price != 49900 {
		t.Errorf("stored courses = %+v", s.courses)
	}

	if err := execute(t, a, "user", "create", "--email", "not-an-email"); err == nil {
		t.Error("expected invalid email error")
	}
	if err := execute(t, a, "course", "create", "--name", "Go", "--price", "-1"); err == nil {
		t.Error("expected negative price error")
	}
}

func TestWebhookSecret(t *testing.T) {
	a, out := newTestApp(nil)
	if err := execute(t, a, "webhook", "secret"); err != nil {
		t.Fatalf("webhook secret: %v", err)
	}
	if got := strings.TrimSpace(out.String()); len(got) != 64 {
		t.Errorf("secret = %q, want 64 hex chars", got)
	}
}
