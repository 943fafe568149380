// Package store persists the record collection. The whole ordered list is the
// unit of persistence: every mutation loads it from a Backend, changes it in
// memory and writes it back in one piece.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/domain/repositories"
)

// CollectionName names the persisted collection in every backend.
const CollectionName = "medichain_patients"

// Backend loads and saves the whole collection. Load on a collection that was
// never saved returns an empty list.
type Backend interface {
	Load(ctx context.Context) ([]entities.Record, error)
	Save(ctx context.Context, records []entities.Record) error
	Close() error
}

var _ repositories.RecordRepositoryContract = (*RecordStore)(nil)

// RecordStore is the single writer over a Backend. Its mutex serializes the
// read-modify-write cycle of callers sharing the instance.
type RecordStore struct {
	backend Backend
	logger  zerolog.Logger
	mu      sync.Mutex
}

func NewRecordStore(backend Backend, logger zerolog.Logger) *RecordStore {
	return &RecordStore{
		backend: backend,
		logger:  logger.With().Str("component", "store").Logger(),
	}
}

// List returns the records in insertion order.
func (s *RecordStore) List(ctx context.Context) ([]entities.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add appends the record and persists the collection.
func (s *RecordStore) Add(ctx context.Context, record entities.Record) ([]entities.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	records = append(records, record)
	if err := s.save(ctx, records); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("record_id", record.ID).Int("count", len(records)).Msg("record added")
	return clone(records), nil
}

// Update replaces the record with the same id. A miss leaves the collection
// untouched and nothing is written.
func (s *RecordStore) Update(ctx context.Context, record entities.Record) ([]entities.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, record.ID)
	if i < 0 {
		s.logger.Debug().Str("record_id", record.ID).Msg("update miss, nothing written")
		return records, nil
	}
	records[i] = record
	if err := s.save(ctx, records); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("record_id", record.ID).Msg("record updated")
	return clone(records), nil
}

// Delete removes the record with the id. A miss is a no-op.
func (s *RecordStore) Delete(ctx context.Context, id string) ([]entities.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		s.logger.Debug().Str("record_id", id).Msg("delete miss, nothing written")
		return records, nil
	}
	records = append(records[:i], records[i+1:]...)
	if err := s.save(ctx, records); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("record_id", id).Int("count", len(records)).Msg("record deleted")
	return clone(records), nil
}

func (s *RecordStore) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(records, id); i >= 0 {
		r := records[i]
		return &r, nil
	}
	return nil, nil
}

func (s *RecordStore) Close() error {
	return s.backend.Close()
}

func (s *RecordStore) load(ctx context.Context) ([]entities.Record, error) {
	records, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", CollectionName, err)
	}
	if records == nil {
		records = []entities.Record{}
	}
	return records, nil
}

func (s *RecordStore) save(ctx context.Context, records []entities.Record) error {
	if err := s.backend.Save(ctx, records); err != nil {
		s.logger.Error().Err(err).Msg("persist collection failed")
		return fmt.Errorf("save %s: %w", CollectionName, err)
	}
	return nil
}

func indexOf(records []entities.Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(records []entities.Record) []entities.Record {
	out := make([]entities.Record, len(records))
	copy(out, records)
	return out
}
