package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionUpdated  EventType = "session.updated"
	EventTypeSessionStarted  EventType = "session.started"
	EventTypeOOCMessage      EventType = "ooc.message"
	EventTypePresenceChanged EventType = "presence.changed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// Channel returns the Pub/Sub channel for a session.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSessionUpdated announces a committed turn.
func (b *Broadcaster) PublishSessionUpdated(ctx context.Context, sessionID uuid.UUID, version int64, nextActorID string) error {
	return b.Publish(ctx, sessionID, EventTypeSessionUpdated, map[string]any{
		"version":       version,
		"next_actor_id": nextActorID,
	})
}

// PublishSessionStarted announces that a forming session became active.
func (b *Broadcaster) PublishSessionStarted(ctx context.Context, sessionID uuid.UUID, turnOrder []string) error {
	return b.Publish(ctx, sessionID, EventTypeSessionStarted, map[string]any{
		"turn_order": turnOrder,
	})
}

// PublishOOC relays an out-of-character message.
func (b *Broadcaster) PublishOOC(ctx context.Context, sessionID uuid.UUID, userID, text string) error {
	return b.Publish(ctx, sessionID, EventTypeOOCMessage, map[string]any{
		"user_id": userID,
		"text":    text,
	})
}

// PublishPresence announces the current set of connected viewers.
func (b *Broadcaster) PublishPresence(ctx context.Context, sessionID uuid.UUID, members []string) error {
	return b.Publish(ctx, sessionID, EventTypePresenceChanged, map[string]any{
		"members": members,
	})
}

// Publish sends an event to the session-specific channel
func (b *Broadcaster) Publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, data map[string]any) error {
	channel := Channel(sessionID)
	event := Event{
		Type:      eventType,
		SessionID: sessionID.String(),
		Data:      data,
		SentAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", eventType,
	)

	return nil
}

// Subscribe opens a subscription to a session's channel. The caller must
// close the returned PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) (*redis.PubSub, error) {
	pubsub := b.redisClient.Subscribe(ctx, Channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return pubsub, nil
}
