package ports

import "context"

// Messenger is the outbound transport boundary. Best-effort delivery with a
// stable per-message identifier; delivery mechanics live behind the carrier.
type Messenger interface {
	Send(ctx context.Context, address, text string) (messageID string, err error)
}
