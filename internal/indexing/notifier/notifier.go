// Package notifier forwards newly issued credits downstream. Delivery is
// best effort: one attempt, no retry, no queue.
package notifier

import (
	"context"
	"log/slog"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// Notifier delivers one credit notification.
type Notifier interface {
	Notify(ctx context.Context, payload domain.NotificationPayload) error
}

// LogNotifier only logs payloads. It is used when no endpoint is configured.
type LogNotifier struct {
	log *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, payload domain.NotificationPayload) error {
	n.log.Info("Notification (dry run)",
		"task", int(payload.TaskID),
		"address", payload.Address,
		"timestamp", payload.Timestamp,
	)
	return nil
}
