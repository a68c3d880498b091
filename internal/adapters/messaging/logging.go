package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LoggingMessenger stands in for the carrier in local development: outbound
// texts are written to the structured log and always succeed.
type LoggingMessenger struct {
	logger *slog.Logger
}

func NewLoggingMessenger(logger *slog.Logger) *LoggingMessenger {
	return &LoggingMessenger{logger: logger}
}

func (m *LoggingMessenger) Send(ctx context.Context, address, text string) (string, error) {
	messageID := uuid.NewString()
	m.logger.InfoContext(ctx, "message sent",
		"module", "messaging.logging",
		"layer", "adapter",
		"operation", "send",
		"outcome", "success",
		"address", address,
		"message_id", messageID,
		"body_chars", len(text),
	)
	return messageID, nil
}
