package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferCompleted indicates an outbound transfer committed.
	KindTransferCompleted = "transfer_completed"
	// KindReceiveCompleted indicates an inbound credit committed.
	KindReceiveCompleted = "receive_completed"
	// KindDeviceVerification carries a verification code for delivery.
	KindDeviceVerification = "device_verification"
)

// Event describes a notification payload. Events are informational only:
// delivery failure never affects a committed transaction.
type Event struct {
	Kind      string `json:"kind"`
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount,omitempty"`
	Fee       int64  `json:"fee,omitempty"`
	Status    string `json:"status,omitempty"`
	Body      string `json:"body,omitempty"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes notifications to the structured logger. Used in dev
// mode and tests, and as the fallback when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", event.Kind,
		"account_id", event.AccountID,
		"amount", event.Amount,
		"fee", event.Fee,
		"status", event.Status)
	return nil
}
