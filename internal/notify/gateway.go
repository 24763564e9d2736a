// Package notify delivers push notifications through an external push
// provider. The provider is a black box behind the Gateway interface;
// everything here is fire and forget from the caller's point of view.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/armada-chat/armada/config"
)

const previewLimit = 100

// Notification is one push to one device endpoint.
type Notification struct {
	UserID    uuid.UUID `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
}

// Gateway sends a notification to one subscription endpoint.
type Gateway interface {
	Send(ctx context.Context, n *Notification) error
}

// Preview truncates message content for a notification body. Counts
// runes, not bytes, so multibyte text never splits mid-character.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}

// HTTPGateway posts notifications to the configured push endpoint.
type HTTPGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPGateway(cfg *config.PushConfig) *HTTPGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
	return nil
}
