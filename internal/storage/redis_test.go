package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, ttl, logger)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_InsertGetUpdateDelete(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	rec := &Record{ID: "abc", Data: json.RawMessage(`{"n":1}`)}
	require.NoError(t, store.Insert(ctx, "games", rec))
	assert.Equal(t, int64(1), rec.Version)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get(ctx, "games", "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.JSONEq(t, `{"n":1}`, string(got.Data))

	got.Data = json.RawMessage(`{"n":2}`)
	require.NoError(t, store.Update(ctx, "games", got))
	assert.Equal(t, int64(2), got.Version)

	again, err := store.Get(ctx, "games", "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.JSONEq(t, `{"n":2}`, string(again.Data))
	assert.Equal(t, rec.CreatedAt.Unix(), again.CreatedAt.Unix())

	require.NoError(t, store.Delete(ctx, "games", "abc"))
	_, err = store.Get(ctx, "games", "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	assert.NoError(t, store.Delete(ctx, "games", "abc"))
}

func TestRedisStore_InsertDuplicate(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "games", &Record{ID: "dup", Data: json.RawMessage(`{}`)}))
	err := store.Insert(ctx, "games", &Record{ID: "dup", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRedisStore_UpdateVersionConflict(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "games", &Record{ID: "v", Data: json.RawMessage(`{}`)}))

	first, err := store.Get(ctx, "games", "v")
	require.NoError(t, err)
	second, err := store.Get(ctx, "games", "v")
	require.NoError(t, err)

	first.Data = json.RawMessage(`{"winner":"first"}`)
	require.NoError(t, store.Update(ctx, "games", first))

	second.Data = json.RawMessage(`{"winner":"second"}`)
	err = store.Update(ctx, "games", second)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version, "failed update must not touch the caller's version")

	stored, err := store.Get(ctx, "games", "v")
	require.NoError(t, err)
	assert.JSONEq(t, `{"winner":"first"}`, string(stored.Data))
}

func TestRedisStore_UpdateMissing(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	err := store.Update(context.Background(), "games", &Record{ID: "ghost", Version: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConcurrentUpdatesOneWins(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, "games", &Record{ID: "race", Data: json.RawMessage(`{}`)}))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &Record{ID: "race", Version: 1, Data: json.RawMessage(`{}`)}
			err := store.Update(ctx, "games", rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "games", &Record{ID: "ttl", Data: json.RawMessage(`{}`)}))
	assert.Equal(t, time.Hour, mr.TTL("games:ttl"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "games", "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}
