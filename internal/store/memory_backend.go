package store

import (
	"context"
	"sync"

	"medical-record-exchange/internal/domain/entities"
)

// MemoryBackend keeps the collection in process. Saves counts writes so
// callers can tell a no-op from a persisted change.
type MemoryBackend struct {
	mu      sync.Mutex
	records []entities.Record
	saves   int
}

func NewMemoryBackend(seed ...entities.Record) *MemoryBackend {
	return &MemoryBackend{records: clone(seed)}
}

func (b *MemoryBackend) Load(_ context.Context) ([]entities.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.records), nil
}

func (b *MemoryBackend) Save(_ context.Context, records []entities.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = clone(records)
	b.saves++
	return nil
}

func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error { return nil }
