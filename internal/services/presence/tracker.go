package presence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a viewer stays present without a heartbeat.
const DefaultTTL = 45 * time.Second

// Tracker records which users are currently watching a session. Each member
// is scored with the time its heartbeat expires.
type Tracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewTracker(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		rdb:    rdb,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func presenceKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", sessionID.String())
}

// TTL is the heartbeat window. Callers should call Join again before it lapses.
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// Join marks userID present, or refreshes its heartbeat.
func (t *Tracker) Join(ctx context.Context, sessionID uuid.UUID, userID string) error {
	key := presenceKey(sessionID)
	expires := t.now().Add(t.ttl)
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(expires.UnixMilli()), Member: userID})
		pipe.Expire(ctx, key, t.ttl*2)
		return nil
	})
	if err != nil {
		t.logger.Error("Failed to record presence", "session_id", sessionID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to record presence: %w", err)
	}
	return nil
}

// Leave removes userID immediately.
func (t *Tracker) Leave(ctx context.Context, sessionID uuid.UUID, userID string) error {
	if err := t.rdb.ZRem(ctx, presenceKey(sessionID), userID).Err(); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

// Members returns the users whose heartbeat has not lapsed, sorted by id.
func (t *Tracker) Members(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	key := presenceKey(sessionID)
	cutoff := strconv.FormatInt(t.now().UnixMilli(), 10)

	if err := t.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune presence: %w", err)
	}
	members, err := t.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	slices.Sort(members)
	return members, nil
}

// Clear drops all presence for a session.
func (t *Tracker) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := t.rdb.Del(ctx, presenceKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}
