package redis

import (
	"context"
	"encoding/json"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type NotificationSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewNotificationSubscriber(client *redis.Client, channel string, log logger.Logger) *NotificationSubscriber {
	return &NotificationSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// SubscribeToNotifications calls handler for every notification published on
// the channel until ctx is done. Malformed payloads and handler errors are
// logged and skipped.
func (r *NotificationSubscriber) SubscribeToNotifications(ctx context.Context, handler domain.NotificationHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()

	r.log.Info("Subscribed to notifications", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var notification domain.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				r.log.Error("Failed to parse notification", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(&notification); err != nil {
				r.log.Error("Failed to handle notification",
					"notification_id", notification.ID, "user_id", notification.UserID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Notification subscriber stopped")
			return ctx.Err()
		}
	}
}

var _ domain.NotificationSubscriber = (*NotificationSubscriber)(nil)
