package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel carries change batches between instances.
const DefaultRedisChannel = "classwork:changes"

type envelope struct {
	Origin  string   `json:"origin"`
	Changes []Change `json:"changes"`
}

// RedisBridge shares committed changes between instances serving the same
// database, so subscribers on one instance see writes made through another.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *slog.Logger
	timeout time.Duration
}

// NewRedisBridge wires hub to the given channel. Call Run to start relaying.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
		timeout: 2 * time.Second,
	}
	hub.SetForwarder(b.forward)
	return b
}

// Run relays remote batches into the hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime bridge subscribed", slog.String("channel", b.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			changes, remote, err := b.decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed change batch", slog.String("error", err.Error()))
				continue
			}
			if remote {
				b.hub.Deliver(changes...)
			}
		}
	}
}

func (b *RedisBridge) forward(changes []Change) {
	payload, err := b.encode(changes)
	if err != nil {
		b.logger.Error("encode change batch", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("publish change batch", slog.String("error", err.Error()))
	}
}

func (b *RedisBridge) encode(changes []Change) ([]byte, error) {
	return json.Marshal(envelope{Origin: b.origin, Changes: changes})
}

// decode reports whether the batch came from another instance.
func (b *RedisBridge) decode(payload []byte) ([]Change, bool, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false, err
	}
	return env.Changes, env.Origin != b.origin, nil
}
