package events

import "context"

// NoopConsumer stands in when no broker is configured. The worker then runs
// its outbox and sweep loops without roster cancellation events; cancelled
// assignments are still caught by the sweep's per-campaign roster check.
type NoopConsumer struct{}

func NewNoopConsumer() *NoopConsumer {
	return &NoopConsumer{}
}

func (n *NoopConsumer) Poll(_ context.Context, _ int) ([]Message, error) {
	return nil, nil
}
