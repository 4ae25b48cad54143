// Package notify delivers push notifications about new messages. Delivery
// is fire-and-forget: callers log failures and move on.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notification is addressed to a participant, not a device. The push token
// is looked up when the notification is finally sent.
type Notification struct {
	RecipientID string            `json:"recipientId"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
}

// LogDispatcher only logs notifications.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, n Notification) error {
	d.logger.Info("push notification",
		zap.String("recipient_id", n.RecipientID),
		zap.String("title", n.Title),
		zap.String("conversation_id", n.Data["conversationId"]),
	)
	return nil
}
