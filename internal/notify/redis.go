package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cartalks/backend/internal/cache"
)

// RedisDispatcher publishes notifications on the push channel; a Worker
// subscribed to the same channel sends them.
type RedisDispatcher struct {
	redis *cache.RedisClient
}

func NewRedisDispatcher(redis *cache.RedisClient) *RedisDispatcher {
	return &RedisDispatcher{redis: redis}
}

func (d *RedisDispatcher) Notify(ctx context.Context, n Notification) error {
	return d.redis.PublishPush(ctx, n)
}

// Subscribe streams notifications published on the push channel until ctx
// is cancelled.
func (d *RedisDispatcher) Subscribe(ctx context.Context, logger *zap.Logger) <-chan Notification {
	out := make(chan Notification)
	ps := d.redis.SubscribePush(ctx)

	go func() {
		defer close(out)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					logger.Warn("invalid push payload", zap.Error(err))
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
