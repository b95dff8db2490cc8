package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/goroutine"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const realtimeChannel = "livedesk:realtime"

// RealtimeTarget selects who receives a relayed event.
type RealtimeTarget string

const (
	TargetUser RealtimeTarget = "user"
	TargetRoom RealtimeTarget = "room"
)

// RealtimeEnvelope carries one broadcaster call to the other instances.
type RealtimeEnvelope struct {
	Target     RealtimeTarget  `json:"target"`
	UserID     ids.UserID      `json:"user_id,omitempty"`
	RoomID     ids.RoomID      `json:"room_id,omitempty"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	InstanceID string          `json:"instance_id,omitempty"` // Source instance ID to avoid self-delivery
}

// RealtimePublisher relays broadcaster calls to the other instances.
type RealtimePublisher interface {
	Publish(ctx context.Context, env RealtimeEnvelope) error
}

// RealtimeSubscriber receives events relayed by other instances.
type RealtimeSubscriber interface {
	Subscribe(ctx context.Context, handler func(env RealtimeEnvelope)) error
}

// RealtimeBus combines publisher and subscriber interfaces.
type RealtimeBus interface {
	RealtimePublisher
	RealtimeSubscriber
}

// RedisRealtimeBus implements RealtimeBus using Redis Pub/Sub.
type RedisRealtimeBus struct {
	client     *redis.Client
	logger     logger.Interface
	instanceID string
}

func NewRedisRealtimeBus(client *redis.Client, logger logger.Interface) *RedisRealtimeBus {
	return &RedisRealtimeBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

func (b *RedisRealtimeBus) InstanceID() string {
	return b.instanceID
}

// Publish stamps the envelope with this instance's ID and publishes it.
func (b *RedisRealtimeBus) Publish(ctx context.Context, env RealtimeEnvelope) error {
	if env.Timestamp == 0 {
		env.Timestamp = biztime.NowUTC().UnixMilli()
	}
	env.InstanceID = b.instanceID

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime envelope: %w", err)
	}

	if err := b.client.Publish(ctx, realtimeChannel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish realtime event",
			"event", env.Event,
			"target", env.Target,
			"error", err,
		)
		return fmt.Errorf("failed to publish realtime event: %w", err)
	}
	return nil
}

// Subscribe blocks until ctx is done, handing every envelope published by
// another instance to handler.
func (b *RedisRealtimeBus) Subscribe(ctx context.Context, handler func(env RealtimeEnvelope)) error {
	return b.subscribeWithReconnect(ctx, realtimeChannel, func(payload string) {
		var env RealtimeEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			b.logger.Warnw("failed to unmarshal realtime envelope",
				"payload", payload,
				"error", err,
			)
			return
		}

		if env.InstanceID == b.instanceID {
			return
		}

		handler(env)
	})
}

// reconnectBackOff spaces out resubscribe attempts. It never gives up.
func reconnectBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	return bo
}

// subscribeWithReconnect wraps subscribe with automatic reconnection and exponential backoff.
// The delay starts over once a subscription is confirmed.
func (b *RedisRealtimeBus) subscribeWithReconnect(ctx context.Context, channel string, handler func(payload string)) error {
	bo := reconnectBackOff()

	for {
		err := b.subscribe(ctx, channel, bo.Reset, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := bo.NextBackOff()
		b.logger.Warnw("realtime subscription disconnected, reconnecting",
			"channel", channel,
			"error", err,
			"backoff", delay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (b *RedisRealtimeBus) subscribe(ctx context.Context, channel string, onSubscribed func(), handler func(payload string)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}
	onSubscribed()

	b.logger.Infow("subscribed to realtime channel",
		"channel", channel,
	)

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("realtime channel closed",
					"channel", channel,
				)
				return nil
			}

			// Handled inline so relayed events keep their publish order.
			goroutine.Run(b.logger, "realtime-relay", func() {
				handler(msg.Payload)
			})
		}
	}
}
