package payment

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestNewReceipt(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r, err := NewReceipt()
		if err != nil {
			t.Fatalf("NewReceipt() error = %v", err)
		}
		if len(r) != 2*receiptBytes {
			t.Fatalf("receipt length = %d, want %d", len(r), 2*receiptBytes)
		}
		if _, err := hex.DecodeString(r); err != nil {
			t.Fatalf("receipt %q is not hex: %v", r, err)
		}
		if seen[r] {
			t.Fatalf("duplicate receipt %q", r)
		}
		seen[r] = true
	}
}

func TestNewReceipt_RandomFailure(t *testing.T) {
	orig := randRead
	randRead = func(b []byte) (int, error) { return 0, errors.New("entropy exhausted") }
	t.Cleanup(func() { randRead = orig })

	if _, err := NewReceipt(); err == nil {
		t.Fatal("expected error when randomness fails")
	}
}
