package payment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// receiptBytes is the entropy of a receipt token (20 hex chars).
const receiptBytes = 10

// randRead is swapped in tests.
var randRead = rand.Read

// NewReceipt generates an opaque receipt token for a gateway order.
func NewReceipt() (string, error) {
	b := make([]byte, receiptBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("generate receipt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
