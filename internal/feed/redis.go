package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRelay publishes changes to a redis channel and delivers every change
// received on that channel, including its own, to a local Bus. Running one
// relay per instance gives all instances the same stream.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	local   *Bus
	logger  *slog.Logger
}

func NewRedisRelay(client redis.UniversalClient, channel string, local *Bus, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
	}
}

// Publish falls back to local delivery when redis rejects the message, so
// this instance's subscribers still refresh.
func (r *RedisRelay) Publish(ctx context.Context, c Change) {
	data, err := json.Marshal(c)
	if err != nil {
		r.logger.Error("encode change", "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", "error", err, "family_id", c.FamilyID)
		r.local.Publish(ctx, c)
	}
}

// Run subscribes to the channel and forwards messages until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("redis relay subscribed", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.logger.Warn("discarding malformed change", "error", err)
				continue
			}
			r.local.Publish(ctx, c)
		}
	}
}
