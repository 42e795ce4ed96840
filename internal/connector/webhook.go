package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lantern-live/lantern/internal/config"
	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/util"
	"github.com/rs/zerolog"
)

// WebhookNotifier posts session lifecycle notifications to a
// user-configured HTTP endpoint.
type WebhookNotifier struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   *http.Client
	logger   zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier and subscribes it to
// session lifecycle events.
func NewWebhookNotifier(cfg *config.Config, eventBus *events.EventBus) *WebhookNotifier {
	n := &WebhookNotifier{
		cfg:      cfg,
		eventBus: eventBus,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   util.ComponentLogger("webhook"),
	}

	eventBus.Subscribe(events.EventSessionOpen, "webhook.session_open", n.onSessionOpen)
	eventBus.Subscribe(events.EventSessionClosed, "webhook.session_closed", n.onSessionClosed)

	return n
}

func (n *WebhookNotifier) onSessionOpen(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionOpenPayload)
	if !ok {
		return nil
	}
	return n.send(ctx, "session_open", map[string]interface{}{
		"room_id": payload.RoomID,
		"uid":     payload.UID,
		"host":    payload.Host,
	})
}

func (n *WebhookNotifier) onSessionClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionClosedPayload)
	if !ok {
		return nil
	}
	return n.send(ctx, "session_closed", map[string]interface{}{
		"room_id": payload.RoomID,
		"reason":  payload.Reason,
	})
}

// send posts a notification to the configured webhook URL. A disabled
// or unconfigured webhook is not an error.
func (n *WebhookNotifier) send(ctx context.Context, kind string, fields map[string]interface{}) error {
	webhookCfg := n.cfg.GetApplicationData().Webhook
	if !webhookCfg.Enabled || webhookCfg.URL == "" {
		return nil
	}

	payload := map[string]interface{}{
		"event":     kind,
		"timestamp": time.Now().Format(time.RFC3339),
		"data":      fields,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookCfg.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	n.logger.Debug().Str("event", kind).Msg("webhook notification sent")
	return nil
}
