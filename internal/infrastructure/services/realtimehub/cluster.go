package realtimehub

import (
	"context"
	"encoding/json"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/pubsub"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// ClusterBroadcaster delivers to local connections and relays every event
// through the bus so other instances can reach their own connections.
type ClusterBroadcaster struct {
	hub    *Hub
	bus    pubsub.RealtimeBus
	logger logger.Interface
}

func NewClusterBroadcaster(hub *Hub, bus pubsub.RealtimeBus, log logger.Interface) *ClusterBroadcaster {
	return &ClusterBroadcaster{
		hub:    hub,
		bus:    bus,
		logger: log,
	}
}

func (b *ClusterBroadcaster) SendToUser(ctx context.Context, userID ids.UserID, event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		b.logger.Errorw("failed to encode realtime event", "event", event, "error", err)
		return
	}
	b.hub.DeliverToUser(userID, frame)
	b.publish(ctx, pubsub.RealtimeEnvelope{
		Target:    pubsub.TargetUser,
		UserID:    userID,
		Event:     event,
		Payload:   frame.Data,
		Timestamp: frame.Timestamp,
	})
}

func (b *ClusterBroadcaster) SendToRoom(ctx context.Context, roomID ids.RoomID, event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		b.logger.Errorw("failed to encode realtime event", "event", event, "error", err)
		return
	}
	b.hub.DeliverToRoom(ctx, roomID, frame)
	b.publish(ctx, pubsub.RealtimeEnvelope{
		Target:    pubsub.TargetRoom,
		RoomID:    roomID,
		Event:     event,
		Payload:   frame.Data,
		Timestamp: frame.Timestamp,
	})
}

func (b *ClusterBroadcaster) publish(ctx context.Context, env pubsub.RealtimeEnvelope) {
	// Relay failures only affect clients on other instances.
	if err := b.bus.Publish(ctx, env); err != nil {
		b.logger.Warnw("failed to relay realtime event",
			"event", env.Event,
			"target", env.Target,
			"error", err,
		)
	}
}

// Relay feeds events published by other instances into the local hub. It
// blocks until ctx is cancelled.
func (b *ClusterBroadcaster) Relay(ctx context.Context) error {
	return b.bus.Subscribe(ctx, func(env pubsub.RealtimeEnvelope) {
		frame := &Frame{
			Event:     env.Event,
			Data:      json.RawMessage(env.Payload),
			Timestamp: env.Timestamp,
		}
		switch env.Target {
		case pubsub.TargetUser:
			b.hub.DeliverToUser(env.UserID, frame)
		case pubsub.TargetRoom:
			b.hub.DeliverToRoom(ctx, env.RoomID, frame)
		default:
			b.logger.Warnw("unknown realtime relay target",
				"target", env.Target,
				"event", env.Event,
			)
		}
	})
}
