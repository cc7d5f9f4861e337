package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// ClientTimeout bounds a single gateway call when the caller sets no deadline.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// GatewayOrderRequest is the payload for pre-creating a payable order.
type GatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// GatewayOrder is the gateway's order reference.
// Raw holds the provider response exactly as returned.
type GatewayOrder struct {
	ID  string
	Raw json.RawMessage
}

// Gateway creates payable orders at the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
}

// GatewayError describes a non-2xx provider response.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, e.Description)
}

// RazorpayClient is a Gateway backed by the Razorpay Orders API.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewRazorpayClient creates a client for the given credentials.
// A nil httpClient gets a client with conservative timeouts.
func NewRazorpayClient(baseURL, keyID, keySecret string, httpClient *http.Client) *RazorpayClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &RazorpayClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    httpClient,
	}
}

// NewHTTPClient creates an HTTP client configured for gateway calls.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// KeyID returns the public key identifier handed to checkout clients.
func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

// CreateOrder calls POST /v1/orders.
func (c *RazorpayClient) CreateOrder(ctx context.Context, in GatewayOrderRequest) (*GatewayOrder, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send order request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseGatewayError(resp.StatusCode, raw)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if parsed.ID == "" {
		return nil, errors.New("gateway response missing order id")
	}

	return &GatewayOrder{ID: parsed.ID, Raw: json.RawMessage(raw)}, nil
}

// parseGatewayError extracts Razorpay's {"error":{"code","description"}} envelope.
func parseGatewayError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	gwErr := &GatewayError{StatusCode: status}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		gwErr.Code = envelope.Error.Code
		gwErr.Description = envelope.Error.Description
	}
	return gwErr
}
