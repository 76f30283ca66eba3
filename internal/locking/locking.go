// Package locking serializes mutations per key. Locks on different keys
// never contend.
package locking

import (
	"context"
	"strings"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Keyed hands out exclusive locks by key. The returned unlock func must be
// called exactly once.
type Keyed interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

var Module = fx.Module("locking",
	fx.Provide(New),
)

// New picks the Redis lock when a client is configured so that several
// portal replicas share one critical section per key.
func New(cfg config.Config, client *redis.Client, log *zap.Logger) Keyed {
	if client == nil {
		return NewLocal()
	}
	return NewRedis(client, cfg.LockTTL, log)
}

// SubscriptionKey identifies the critical section of one (application, api) pair.
func SubscriptionKey(applicationID, apiID string) string {
	return "wicked:lock:subscription:" + strings.TrimSpace(applicationID) + ":" + strings.TrimSpace(apiID)
}
