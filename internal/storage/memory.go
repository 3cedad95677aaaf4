package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process RecordStore for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	pingError error

	// Fail hooks let tests inject errors per operation.
	FailGet    error
	FailInsert error
	FailUpdate error
	FailDelete error
}

// Ensure MemoryStore implements RecordStore interface
var _ RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

// SetPingError configures Ping to fail with err. A nil err restores success.
func (m *MemoryStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, table, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	rec, ok := m.records[key(table, id)]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Data = slices.Clone(rec.Data)
	return &rec, nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return m.FailInsert
	}
	k := key(table, rec.ID)
	if _, ok := m.records[k]; ok {
		return ErrAlreadyExists
	}

	now := time.Now().UTC()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := *rec
	stored.Data = slices.Clone(rec.Data)
	m.records[k] = stored
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		return m.FailUpdate
	}
	k := key(table, rec.ID)
	current, ok := m.records[k]
	if !ok {
		return ErrNotFound
	}
	if current.Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version = current.Version + 1
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	stored := *rec
	stored.Data = slices.Clone(rec.Data)
	m.records[k] = stored
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.records, key(table, id))
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
