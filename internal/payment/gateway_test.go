package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRazorpayClient_CreateOrder(t *testing.T) {
	var got GatewayOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_key" || pass != "rzp_secret" {
			t.Errorf("unexpected basic auth %q:%q", user, pass)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","entity":"order","amount":49900,"currency":"INR","receipt":"r1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL+"/", "rzp_key", "rzp_secret", srv.Client())
	order, err := c.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 49900, Currency: "INR", Receipt: "r1"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if order.ID != "order_abc" {
		t.Errorf("ID = %q, want order_abc", order.ID)
	}
	if got.Amount != 49900 || got.Currency != "INR" || got.Receipt != "r1" {
		t.Errorf("unexpected request payload %+v", got)
	}

	var raw map[string]any
	if err := json.Unmarshal(order.Raw, &raw); err != nil {
		t.Fatalf("raw response is not JSON: %v", err)
	}
	if raw["status"] != "created" {
		t.Errorf("raw response not preserved: %v", raw)
	}
}

func TestRazorpayClient_CreateOrder_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", srv.Client())
	_, err := c.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest || gwErr.Code != "BAD_REQUEST_ERROR" {
		t.Errorf("unexpected gateway error %+v", gwErr)
	}
}

func TestRazorpayClient_CreateOrder_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entity":"order"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", srv.Client())
	if _, err := c.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 100}); err == nil {
		t.Fatal("expected error for response without id")
	}
}

func TestRazorpayClient_CreateOrder_Deadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewRazorpayClient(srv.URL, "k", "s", srv.Client())
	_, err := c.CreateOrder(ctx, GatewayOrderRequest{Amount: 100})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
