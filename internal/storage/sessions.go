package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/state"
)

// SessionsTable holds session snapshots.
const SessionsTable = "games"

// Sessions persists session snapshots in a RecordStore. The record version
// is authoritative and is copied into GameSession.Version on every load and
// save.
type Sessions struct {
	store  RecordStore
	logger *slog.Logger
}

func NewSessions(store RecordStore, logger *slog.Logger) *Sessions {
	return &Sessions{store: store, logger: logger}
}

func (s *Sessions) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Load returns ErrNotFound when the session does not exist.
func (s *Sessions) Load(ctx context.Context, id uuid.UUID) (*state.GameSession, error) {
	rec, err := s.store.Get(ctx, SessionsTable, id.String())
	if err != nil {
		return nil, err
	}

	var gs state.GameSession
	if err := json.Unmarshal(rec.Data, &gs); err != nil {
		s.logger.Error("Failed to unmarshal session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	gs.Version = rec.Version
	return &gs, nil
}

// Create stores a new session and sets its version.
func (s *Sessions) Create(ctx context.Context, gs *state.GameSession) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	rec := &Record{ID: gs.ID.String(), Data: data}
	if err := s.store.Insert(ctx, SessionsTable, rec); err != nil {
		return err
	}
	gs.Version = rec.Version
	return nil
}

// Save persists gs if the stored version still equals gs.Version, then
// advances gs.Version. It returns ErrVersionConflict otherwise.
func (s *Sessions) Save(ctx context.Context, gs *state.GameSession) error {
	gs.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	rec := &Record{ID: gs.ID.String(), Version: gs.Version, Data: data}
	if err := s.store.Update(ctx, SessionsTable, rec); err != nil {
		return err
	}
	gs.Version = rec.Version
	return nil
}

func (s *Sessions) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, SessionsTable, id.String())
}
