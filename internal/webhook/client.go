package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coursecart/fulfillment/internal/metrics"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	maxResponseDrain = 64 << 10
)

// Header names set on every delivery.
const (
	HeaderSignature  = "X-Fulfillment-Signature"
	HeaderTimestamp  = "X-Fulfillment-Timestamp"
	HeaderDeliveryID = "X-Fulfillment-Delivery-Id"
	HeaderEvent      = "X-Fulfillment-Event"

	userAgent = "Fulfillment-Webhook/1.0"
)

// NewHTTPClient creates an HTTP client for webhook delivery that only
// connects to addresses policy allows. Redirects are not followed.
func NewHTTPClient(policy TargetPolicy) *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
				Control:   policy.dialControl,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// DeliveryError reports a non-2xx response from the endpoint.
type DeliveryError struct {
	StatusCode int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook endpoint returned %d", e.StatusCode)
}

// Permanent reports whether a retry cannot change the outcome. Client
// errors are final except for timeouts and throttling.
func (e *DeliveryError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Sender posts signed payloads to a single endpoint.
type Sender struct {
	url     string
	secret  string
	client  *http.Client
	metrics metrics.Recorder
	now     func() time.Time
}

// NewSender creates a Sender. A nil client uses NewHTTPClient with the
// strict zero TargetPolicy.
func NewSender(targetURL, secret string, client *http.Client, recorder metrics.Recorder) *Sender {
	if client == nil {
		client = NewHTTPClient(TargetPolicy{})
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Sender{
		url:     targetURL,
		secret:  secret,
		client:  client,
		metrics: recorder,
		now:     time.Now,
	}
}

// Host returns the endpoint host for logging. The full URL may carry
// credentials in its path or query.
func (s *Sender) Host() string {
	parsed, err := url.Parse(s.url)
	if err != nil {
		return "(invalid)"
	}
	return parsed.Host
}

// Deliver posts payload once. deliveryID is stable across retries so the
// receiver can deduplicate.
func (s *Sender) Deliver(ctx context.Context, deliveryID, eventType string, payload []byte) error {
	timestamp := s.now().Unix()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, Sign(s.secret, timestamp, payload))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderDeliveryID, deliveryID)
	req.Header.Set(HeaderEvent, eventType)

	start := time.Now()
	resp, err := s.client.Do(req)
	s.metrics.ObserveWebhookDuration(time.Since(start))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}
