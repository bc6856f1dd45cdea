// Package notify delivers short codes to certificate recipients.
package notify

import (
	"context"
	"log/slog"

	"certify/pkg/email"
)

// Notifier sends a code (a certificate identifier, a one-time code) to a
// recipient address. Delivery is best effort from the caller's view.
type Notifier interface {
	Send(ctx context.Context, recipient, code string) error
}

// LogNotifier writes notifications to the structured log instead of a mail
// relay. Recipient addresses are masked.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, code string) error {
	n.logger.InfoContext(ctx, "notification sent",
		"recipient", email.Mask(recipient),
		"greeting", email.Greeting("", recipient),
		"code", code,
	)
	return nil
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }
