package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultOOCRetention is how many out-of-character messages a session keeps.
const DefaultOOCRetention = 200

// OOCMessage is out-of-character table talk. It never reaches the narrator.
type OOCMessage struct {
	UserID string    `json:"user_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// OOCQueue keeps a bounded list of out-of-character messages per session.
type OOCQueue struct {
	rdb       *redis.Client
	retention int64
	logger    *slog.Logger
}

func NewOOCQueue(rdb *redis.Client, logger *slog.Logger) *OOCQueue {
	return &OOCQueue{
		rdb:       rdb,
		retention: DefaultOOCRetention,
		logger:    logger,
	}
}

// WithRetention overrides the number of messages kept per session.
func (q *OOCQueue) WithRetention(n int) *OOCQueue {
	if n > 0 {
		q.retention = int64(n)
	}
	return q
}

func queueKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("ooc:%s", sessionID.String())
}

// Append adds a message to the end of the session's list and trims the
// oldest entries beyond the retention limit.
func (q *OOCQueue) Append(ctx context.Context, sessionID uuid.UUID, msg OOCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize ooc message: %w", err)
	}

	key := queueKey(sessionID)
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -q.retention, -1)
		return nil
	})
	if err != nil {
		q.logger.Error("Failed to append ooc message", "session_id", sessionID, "error", err)
		return fmt.Errorf("failed to append ooc message: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest messages, oldest first. A limit of
// zero or less returns everything retained.
func (q *OOCQueue) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]OOCMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := q.rdb.LRange(ctx, queueKey(sessionID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read ooc messages: %w", err)
	}

	msgs := make([]OOCMessage, 0, len(raw))
	for _, entry := range raw {
		var msg OOCMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			q.logger.Warn("Skipping unreadable ooc message", "session_id", sessionID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Clear removes all messages for a session
func (q *OOCQueue) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := q.rdb.Del(ctx, queueKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear ooc messages: %w", err)
	}
	return nil
}

// Depth returns the number of messages retained for a session
func (q *OOCQueue) Depth(ctx context.Context, sessionID uuid.UUID) (int, error) {
	count, err := q.rdb.LLen(ctx, queueKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ooc queue depth: %w", err)
	}
	return int(count), nil
}
