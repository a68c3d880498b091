package messaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/caregrid/dispatch-service/internal/domain"
)

// CarrierClient sends outbound texts through the upstream messaging carrier's
// HTTP API. The carrier returns its own message identifier, which callers use
// to correlate delivery callbacks.
type CarrierClient struct {
	baseURL    string
	apiKey     string
	fromNumber string
	httpClient *http.Client
}

func NewCarrierClient(baseURL, apiKey, fromNumber string, timeout time.Duration) (*CarrierClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("carrier client requires base url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CarrierClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *CarrierClient) Send(ctx context.Context, address, text string) (string, error) {
	body, _ := sjson.SetBytes(nil, "to", address)
	body, _ = sjson.SetBytes(body, "from", c.fromNumber)
	body, _ = sjson.SetBytes(body, "body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: carrier unreachable: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: carrier response unreadable: %v", domain.ErrDependencyUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := gjson.GetBytes(raw, "error.message").String()
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: carrier rejected send (%d): %s", domain.ErrDependencyUnavailable, resp.StatusCode, detail)
	}

	messageID := gjson.GetBytes(raw, "message_id").String()
	if messageID == "" {
		messageID = gjson.GetBytes(raw, "id").String()
	}
	if messageID == "" {
		// Some carriers ack without an identifier; synthesize one so
		// outreach rows stay correlatable.
		messageID = uuid.NewString()
	}
	return messageID, nil
}
