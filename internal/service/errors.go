package service

import (
	"context"
	"errors"
)

// Kind classifies a service failure. Handlers map kinds to HTTP statuses.
type Kind string

const (
	KindPaymentUnauthorized Kind = "PAYMENT_UNAUTHORIZED"
	KindNotFound            Kind = "NOT_FOUND"
	KindAlreadyOwned        Kind = "ALREADY_OWNED"
	KindInvalidAmount       Kind = "INVALID_AMOUNT"
	KindNotificationFailed  Kind = "NOTIFICATION_FAILED"
	KindGatewayError        Kind = "GATEWAY_ERROR"
	KindInternal            Kind = "INTERNAL_ERROR"
	KindTimeout             Kind = "TIMEOUT"
	KindInvalidRequest      Kind = "INVALID_REQUEST"
)

// Error is a classified failure with a message safe to show to callers.
// Err holds the underlying cause and is never exposed over the wire.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels, so errors.Is(err, ErrAlreadyOwned) holds for
// any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrPaymentUnauthorized = &Error{Kind: KindPaymentUnauthorized}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrAlreadyOwned        = &Error{Kind: KindAlreadyOwned}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrNotificationFailed  = &Error{Kind: KindNotificationFailed}
	ErrGateway             = &Error{Kind: KindGatewayError}
	ErrInternal            = &Error{Kind: KindInternal}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
)

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// downstream classifies a collaborator failure. Deadlines become Timeout;
// everything else gets fallback.
func downstream(fallback Kind, message string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "Request timed out", err)
	}
	return newError(fallback, message, err)
}
