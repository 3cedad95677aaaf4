package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/internal/services/queue"
	"github.com/jwebster45206/taleparty/pkg/chat"
)

// PostOOC stores out-of-character table talk and relays it to subscribers.
// It never touches the story history.
func (o *Orchestrator) PostOOC(ctx context.Context, sessionID uuid.UUID, userID, text string) (*queue.OOCMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if len(text) > chat.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds maximum length of %d characters", ErrInvalidInput, chat.MaxMessageLength)
	}
	if o.ooc == nil {
		return nil, fmt.Errorf("%w: out-of-character chat is not configured", ErrInvalidState)
	}
	if _, err := o.load(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	msg := queue.OOCMessage{UserID: userID, Text: text, SentAt: time.Now().UTC()}
	if err := o.ooc.Append(ctx, sessionID, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if o.publisher != nil {
		if err := o.publisher.PublishOOC(ctx, sessionID, userID, text); err != nil {
			o.logger.Warn("Failed to publish ooc message", "session_id", sessionID, "error", err)
		}
	}
	return &msg, nil
}

// ListOOC returns up to limit of the newest out-of-character messages.
func (o *Orchestrator) ListOOC(ctx context.Context, sessionID uuid.UUID, userID string, limit int) ([]queue.OOCMessage, error) {
	if _, err := o.load(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	if o.ooc == nil {
		return []queue.OOCMessage{}, nil
	}
	msgs, err := o.ooc.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return msgs, nil
}

// Connect marks userID as watching the session and announces the new viewer
// set. Call it again before the presence TTL lapses to stay present.
func (o *Orchestrator) Connect(ctx context.Context, sessionID uuid.UUID, userID string) ([]string, error) {
	if _, err := o.load(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	if o.presence == nil {
		return []string{userID}, nil
	}
	if err := o.presence.Join(ctx, sessionID, userID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return o.announcePresence(ctx, sessionID)
}

// Heartbeat refreshes presence without announcing it.
func (o *Orchestrator) Heartbeat(ctx context.Context, sessionID uuid.UUID, userID string) error {
	if o.presence == nil {
		return nil
	}
	return o.presence.Join(ctx, sessionID, userID)
}

// Disconnect removes userID from the viewer set and announces the change.
func (o *Orchestrator) Disconnect(ctx context.Context, sessionID uuid.UUID, userID string) {
	if o.presence == nil {
		return
	}
	if err := o.presence.Leave(ctx, sessionID, userID); err != nil {
		o.logger.Warn("Failed to remove presence", "session_id", sessionID, "user_id", userID, "error", err)
		return
	}
	if _, err := o.announcePresence(ctx, sessionID); err != nil {
		o.logger.Warn("Failed to announce presence", "session_id", sessionID, "error", err)
	}
}

func (o *Orchestrator) announcePresence(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	members, err := o.presence.Members(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if o.publisher != nil {
		if err := o.publisher.PublishPresence(ctx, sessionID, members); err != nil {
			o.logger.Warn("Failed to publish presence", "session_id", sessionID, "error", err)
		}
	}
	return members, nil
}
