// Package mail renders and delivers transactional email.
package mail

import (
	"context"
	"errors"
)

// ErrInvalidMessage is returned for messages missing a recipient, subject
// or template.
var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a templated email addressed to one recipient.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     any
}

func (m Message) validate() error {
	if m.To == "" || m.Subject == "" || m.Template == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer delivers a message. Implementations report success or failure only;
// they do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
