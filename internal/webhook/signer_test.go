package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	payload := []byte(`{"type":"order.placed","order_id":"01J"}`)

	sig := Sign("whsec_test", 1736600000, payload)
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if sig != Sign("whsec_test", 1736600000, payload) {
		t.Error("signature is not deterministic")
	}
	if sig == Sign("whsec_test", 1736600001, payload) {
		t.Error("different timestamp should produce different signature")
	}
	if sig == Sign("whsec_testx", 1736600000, payload) {
		t.Error("different secret should produce different signature")
	}
}

func TestVerify(t *testing.T) {
	secret := "test_secret"
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"test":"data"}`)
	stale := now.Add(-10 * time.Minute).Unix()
	future := now.Add(10 * time.Minute).Unix()

	tests := []struct {
		name      string
		signature string
		timestamp int64
		payload   []byte
		wantErr   error
	}{
		{"valid", Sign(secret, now.Unix(), payload), now.Unix(), payload, nil},
		{"tampered payload", Sign(secret, now.Unix(), payload), now.Unix(), []byte(`{"test":"other"}`), ErrInvalidSignature},
		{"garbage", "invalid", now.Unix(), payload, ErrInvalidSignature},
		{"expired", Sign(secret, stale, payload), stale, payload, ErrReplayWindowExceeded},
		{"future", Sign(secret, future, payload), future, payload, ErrReplayWindowExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(secret, tt.signature, tt.timestamp, tt.payload, now, DefaultReplayWindow)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("secret length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("secrets should be unique")
	}
}
