package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"
)

// RedisBridge republishes hub events through Redis pub/sub so subscribers
// attached to other server nodes still receive them. It wraps the local
// hub: Publish sends to Redis, and a background loop feeds everything
// received from Redis (including this node's own publishes) into the hub.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
	prefix string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBridge connects to Redis and starts the relay loop. The pattern
// subscription covers every topic channel under the prefix.
func NewRedisBridge(ctx context.Context, hub *Hub, addr, password string, db int, prefix string) (*RedisBridge, error) {
	if prefix == "" {
		prefix = "whisper"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBridge{hub: hub, client: client, prefix: prefix, cancel: cancel, done: make(chan struct{})}

	sub := client.PSubscribe(runCtx, prefix+":topic:*")
	go b.relay(runCtx, sub)
	logger.Info("redis_bridge_started", zap.String("addr", addr), zap.String("prefix", prefix))
	return b, nil
}

func (b *RedisBridge) channel(topic string) string {
	return b.prefix + ":topic:" + topic
}

// Publish sends the event through Redis; local delivery happens when the
// relay loop receives it back. Failures are logged and swallowed; the
// mutation already committed and direct callers have the response.
func (b *RedisBridge) Publish(ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("redis_publish_marshal_failed", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel(ev.Topic), payload).Err(); err != nil {
		logger.Warn("redis_publish_failed", zap.String("topic", ev.Topic), zap.Error(err))
		// degrade to local-only delivery so this node's subscribers
		// still see the event
		b.hub.Publish(ev)
	}
}

func (b *RedisBridge) relay(ctx context.Context, sub *redis.PubSub) {
	defer close(b.done)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("redis_relay_bad_payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			b.hub.Publish(ev)
		}
	}
}

// Close stops the relay loop and releases the Redis connection.
func (b *RedisBridge) Close() error {
	b.cancel()
	<-b.done
	return b.client.Close()
}
