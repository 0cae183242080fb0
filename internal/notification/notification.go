package notification

import (
	"context"
	"log/slog"
)

const (
	// KindPairCompleted is sent when a second token completes an open pair.
	KindPairCompleted = "pair_completed"
	// KindMemoryStored is sent when a sealed memory is persisted for a pair.
	KindMemoryStored = "memory_stored"
)

// Message describes a notification payload. It never carries token or key
// material; Destination is a pair id.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
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
	n.logger.Info("notification", "kind", message.Kind, "pair_id", message.Destination, "body", message.Body)
	return nil
}
