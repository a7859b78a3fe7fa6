package notification

import (
	"context"
	"log/slog"
)

const (
	// KindReply is the enveloped or plaintext reply to an inbound command.
	KindReply = "command_reply"
	// KindOTP is a login one-time code delivery.
	KindOTP = "login_otp"
	// KindCredit notifies a receiver that funds arrived.
	KindCredit = "wallet_credit"
)

// Message describes one outbound text message.
type Message struct {
	Kind string
	// To is the destination phone number in normalized digit form.
	To   string
	Body string
}

// Notifier delivers text messages best-effort. A delivery failure is the
// caller's to log, never to propagate: by the time a reply is sent the
// command's own outcome is already decided.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes messages to the structured logger instead of a
// gateway. Used in development and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("sms delivery", "kind", message.Kind, "to", message.To, "body", message.Body)
	return nil
}
