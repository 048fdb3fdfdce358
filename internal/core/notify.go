package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ImportEvent is the webhook payload for a finished import.
type ImportEvent struct {
	Event     string       `json:"event"`
	Import    ImportResult `json:"import"`
	Timestamp time.Time    `json:"timestamp"`
}

// WebhookNotifier posts ImportEvents to a URL. Delivery is best effort.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier returns nil when url is empty, which disables notifications.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify sends the event. Failures are logged, never returned.
func (n *WebhookNotifier) Notify(ctx context.Context, result ImportResult) {
	if n == nil {
		return
	}
	if err := n.send(ctx, result); err != nil {
		n.logger.Warn("import webhook failed",
			"import_id", result.ImportID,
			"status", result.Status,
			"error", err,
		)
	}
}

func (n *WebhookNotifier) send(ctx context.Context, result ImportResult) error {
	body, err := json.Marshal(ImportEvent{
		Event:     "import." + string(result.Status),
		Import:    result,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
