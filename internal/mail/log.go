package mail

import (
	"context"
	"log/slog"
)

// LogMailer renders messages and logs them instead of sending.
// Used in development when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send validates and renders msg, then logs the envelope.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "mail not sent (smtp disabled)",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"body_bytes", len(body),
	)
	return nil
}
