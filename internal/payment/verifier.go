// Package payment verifies gateway payment claims and talks to the payment gateway.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature is returned when a payment signature does not match.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Verifier checks that a payment claim was signed by the gateway holding
// the shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 of "{orderRef}|{paymentRef}".
func (v *Verifier) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the expected digest.
// Comparison is constant-time.
func (v *Verifier) Verify(orderRef, paymentRef, signature string) bool {
	if signature == "" {
		return false
	}
	expected := v.Sign(orderRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Check is Verify returning ErrInvalidSignature on mismatch.
func (v *Verifier) Check(orderRef, paymentRef, signature string) error {
	if !v.Verify(orderRef, paymentRef, signature) {
		return ErrInvalidSignature
	}
	return nil
}
