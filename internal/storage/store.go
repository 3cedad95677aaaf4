package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrVersionConflict = errors.New("record version conflict")
)

// Record is one row of a table: an opaque JSON document guarded by a version
// counter.
type Record struct {
	ID        string          `json:"id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Closer releases the store's connections.
type Closer interface {
	Close() error
}

// RecordStore is a key-value record store with single-record atomicity.
type RecordStore interface {
	HealthChecker
	Closer

	// Get returns ErrNotFound when the record is absent.
	Get(ctx context.Context, table, id string) (*Record, error)

	// Insert stores a new record with Version 1. It returns ErrAlreadyExists
	// when the id is taken.
	Insert(ctx context.Context, table string, rec *Record) error

	// Update replaces a record only if its stored version equals rec.Version,
	// then increments rec.Version. It returns ErrVersionConflict on a
	// mismatch and ErrNotFound when the record is absent.
	Update(ctx context.Context, table string, rec *Record) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, table, id string) error
}
