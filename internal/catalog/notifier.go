package catalog

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel is the Redis channel carrying product change notifications.
const ChangeChannel = "tillpoint:catalog.changed"

// RedisNotifier publishes change notifications on ChangeChannel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier constructs a notifier. An empty channel selects ChangeChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = ChangeChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Notify publishes the current time as the change marker.
func (n *RedisNotifier) Notify(ctx context.Context) error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Publish(ctx, n.channel, time.Now().UTC().Format(time.RFC3339Nano)).Err()
}
