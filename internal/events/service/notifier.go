package service

import (
	"context"
	"encoding/json"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel listeners subscribe to.
const Channel = "wicked:events"

// NewNotifier publishes to Redis when a client is configured; otherwise
// listeners poll and the notifier does nothing.
func NewNotifier(client *redis.Client, log *zap.Logger) domain.Notifier {
	if client == nil {
		return noopNotifier{}
	}
	return &redisNotifier{client: client, log: log.Named("events.notifier")}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Change) {}

type redisNotifier struct {
	client *redis.Client
	log    *zap.Logger
}

type notification struct {
	Type          domain.EventType `json:"type"`
	ApplicationID string           `json:"applicationId"`
	APIID         string           `json:"apiId,omitempty"`
}

// Notify is best effort: the events are already durable, so a lost
// notification only delays delivery until the next poll.
func (n *redisNotifier) Notify(ctx context.Context, change domain.Change) {
	body, err := json.Marshal(notification{
		Type:          change.Type,
		ApplicationID: change.ApplicationID,
		APIID:         change.APIID,
	})
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, Channel, body).Err(); err != nil {
		n.log.Warn("event notification failed", zap.String("type", string(change.Type)), zap.Error(err))
	}
}
