package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

const (
	DefaultTimeout = 10 * time.Second
	maxLoggedBody  = 1024
)

// WebhookConfig configures the HTTP endpoint.
type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// WebhookNotifier POSTs {token, data:[payload]} to the configured URL.
type WebhookNotifier struct {
	cfg        WebhookConfig
	httpClient *http.Client
	log        *slog.Logger
}

var _ Notifier = (*WebhookNotifier)(nil)

type webhookBody struct {
	Token string                       `json:"token"`
	Data  []domain.NotificationPayload `json:"data"`
}

func NewWebhookNotifier(cfg WebhookConfig, log *slog.Logger) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Notify sends a single payload. Any transport failure or non-2xx status
// is returned wrapped in domain.ErrNotification.
func (n *WebhookNotifier) Notify(ctx context.Context, payload domain.NotificationPayload) error {
	body, err := json.Marshal(webhookBody{
		Token: n.cfg.Token,
		Data:  []domain.NotificationPayload{payload},
	})
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", domain.ErrNotification, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", domain.ErrNotification, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post: %w", domain.ErrNotification, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))

	n.log.Info("Notification response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"body", string(respBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d: %s", domain.ErrNotification, resp.StatusCode, string(respBody))
	}
	return nil
}
