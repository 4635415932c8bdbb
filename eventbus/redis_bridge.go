package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"roomreserve/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pusher publishes a live event toward a user's sessions. Hub implements it
// for single-process use; RedisBridge implements it across processes.
type Pusher interface {
	Push(userID string, event Event) error
}

// Push satisfies Pusher on the local hub.
func (h *Hub) Push(userID string, event Event) error {
	h.Publish(userID, event)
	return nil
}

const bridgeChannel = "roomreserve:events"

type bridgeEnvelope struct {
	UserID string `json:"user_id"`
	Event  Event  `json:"event"`
}

// RedisBridge carries live events between processes over Redis pub/sub: the
// notification worker pushes into it and every API instance's Run loop
// forwards received events into its local hub. Delivery stays best-effort;
// a dropped pub/sub message is recovered by polling.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger
}

// NewRedisBridge connects the bridge. hub may be nil for publish-only
// processes such as the worker.
func NewRedisBridge(addr, password string, db int, hub *Hub) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBridge{client: client, hub: hub, log: logger.Get()}, nil
}

// Push publishes the event for every subscribed process.
func (b *RedisBridge) Push(userID string, event Event) error {
	payload, err := json.Marshal(bridgeEnvelope{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("failed to encode live event: %w", err)
	}
	return b.client.Publish(context.Background(), bridgeChannel, payload).Err()
}

// Run subscribes to the bridge channel and forwards events into the local
// hub until ctx is cancelled. Processes without local subscribers skip it.
func (b *RedisBridge) Run(ctx context.Context) {
	if b.hub == nil {
		return
	}

	sub := b.client.Subscribe(ctx, bridgeChannel)
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
			var envelope bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.log.Warn("dropping malformed live event", zap.Error(err))
				continue
			}
			b.hub.Publish(envelope.UserID, envelope.Event)
		}
	}
}
