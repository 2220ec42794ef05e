package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-marketplace/internal/domain"

	"github.com/go-redis/redis/v8"
)

// NotificationPublisher is a NotificationSink that publishes JSON-encoded
// notifications on a Redis channel for the gateway to deliver.
type NotificationPublisher struct {
	client  *redis.Client
	channel string
}

func NewNotificationPublisher(client *redis.Client, channel string) *NotificationPublisher {
	return &NotificationPublisher{client: client, channel: channel}
}

func (r *NotificationPublisher) Notify(ctx context.Context, notification *domain.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

var _ domain.NotificationSink = (*NotificationPublisher)(nil)
