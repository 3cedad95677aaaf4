package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements RecordStore on Redis. Each record is a JSON value
// under "<table>:<id>"; updates use WATCH/MULTI/EXEC for optimistic locking.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStore implements RecordStore interface
var _ RecordStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. A ttl of zero keeps records forever;
// otherwise every write refreshes the expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

func (r *RedisStore) Get(ctx context.Context, table, id string) (*Record, error) {
	val, err := r.client.Get(ctx, key(table, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to load record", "table", table, "id", id, "error", err)
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) Insert(ctx context.Context, table string, rec *Record) error {
	now := time.Now().UTC()
	stored := *rec
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	val, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key(table, rec.ID), val, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to insert record", "table", table, "id", rec.ID, "error", err)
		return fmt.Errorf("failed to insert record: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	*rec = stored
	return nil
}

func (r *RedisStore) Update(ctx context.Context, table string, rec *Record) error {
	k := key(table, rec.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var current Record
		if err := json.Unmarshal(val, &current); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		if current.Version != rec.Version {
			return ErrVersionConflict
		}

		next := *rec
		next.Version = current.Version + 1
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = time.Now().UTC()

		newVal, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, newVal, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		*rec = next
		return nil
	}, k)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// Another writer changed the key between WATCH and EXEC.
		return ErrVersionConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionConflict):
		return err
	default:
		r.logger.Error("Failed to update record", "table", table, "id", rec.ID, "error", err)
		return fmt.Errorf("failed to update record: %w", err)
	}
}

func (r *RedisStore) Delete(ctx context.Context, table, id string) error {
	if err := r.client.Del(ctx, key(table, id)).Err(); err != nil {
		r.logger.Error("Failed to delete record", "table", table, "id", id, "error", err)
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func key(table, id string) string {
	return table + ":" + id
}
