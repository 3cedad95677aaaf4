package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore implements RecordStore on Supabase tables with the columns
// id, version, data, created_at and updated_at. Updates filter on the
// expected version so a concurrent writer makes them match zero rows.
type SupabaseStore struct {
	client *supabase.Client
	logger *slog.Logger
	// pingTable is queried by Ping.
	pingTable string
}

// Ensure SupabaseStore implements RecordStore interface
var _ RecordStore = (*SupabaseStore)(nil)

// NewSupabaseStore connects to the Supabase project at url.
func NewSupabaseStore(url, apiKey, pingTable string, logger *slog.Logger) (*SupabaseStore, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{
		client:    client,
		logger:    logger,
		pingTable: pingTable,
	}, nil
}

func (s *SupabaseStore) Ping(ctx context.Context) error {
	var rows []Record
	_, err := s.client.From(s.pingTable).
		Select("id", "", false).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}
	return nil
}

func (s *SupabaseStore) Close() error {
	return nil
}

func (s *SupabaseStore) Get(ctx context.Context, table, id string) (*Record, error) {
	var rows []Record
	_, err := s.client.From(table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		s.logger.Error("Failed to load record", "table", table, "id", id, "error", err)
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseStore) Insert(ctx context.Context, table string, rec *Record) error {
	now := time.Now().UTC()
	stored := *rec
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	var rows []Record
	_, err := s.client.From(table).
		Insert(stored, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		s.logger.Error("Failed to insert record", "table", table, "id", rec.ID, "error", err)
		return fmt.Errorf("failed to insert record: %w", err)
	}

	*rec = stored
	return nil
}

func (s *SupabaseStore) Update(ctx context.Context, table string, rec *Record) error {
	now := time.Now().UTC()
	next := rec.Version + 1

	var rows []Record
	_, err := s.client.From(table).
		Update(map[string]any{
			"version":    next,
			"data":       rec.Data,
			"updated_at": now,
		}, "representation", "").
		Eq("id", rec.ID).
		Eq("version", strconv.FormatInt(rec.Version, 10)).
		ExecuteTo(&rows)
	if err != nil {
		s.logger.Error("Failed to update record", "table", table, "id", rec.ID, "error", err)
		return fmt.Errorf("failed to update record: %w", err)
	}

	if len(rows) == 0 {
		// Zero rows matched: either the record is gone or its version moved.
		if _, err := s.Get(ctx, table, rec.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}

	*rec = rows[0]
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, table, id string) error {
	_, _, err := s.client.From(table).
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		s.logger.Error("Failed to delete record", "table", table, "id", id, "error", err)
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err carries Postgres error 23505.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
