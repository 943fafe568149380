package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-record-exchange/internal/domain/entities"
)

func rec(id, name string) entities.Record {
	return entities.Record{
		ID:        id,
		Name:      name,
		Age:       30,
		Gender:    "Female",
		Phone:     "555",
		Address:   "1 Main St",
		LastVisit: "2024-01-01",
		Condition: "Healthy",
	}
}

func newMemoryStore(seed ...entities.Record) (*RecordStore, *MemoryBackend) {
	b := NewMemoryBackend(seed...)
	return NewRecordStore(b, zerolog.Nop()), b
}

func TestRecordStore_AddListOrder(t *testing.T) {
	ctx := context.Background()
	s, b := newMemoryStore()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	_, err = s.Add(ctx, rec("a", "Ann"))
	require.NoError(t, err)
	list, err = s.Add(ctx, rec("b", "Bob"))
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, 2, b.Saves())
}

func TestRecordStore_UpdateReplacesById(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(rec("a", "Ann"), rec("b", "Bob"))

	changed := rec("b", "Robert")
	list, err := s.Update(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "Robert", list[1].Name)

	got, err := s.FindByID(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Robert", got.Name)
}

func TestRecordStore_UpdateDeleteMissAreNoOps(t *testing.T) {
	ctx := context.Background()
	s, b := newMemoryStore(rec("a", "Ann"))

	before, err := s.List(ctx)
	require.NoError(t, err)

	afterUpdate, err := s.Update(ctx, rec("zzz", "Ghost"))
	require.NoError(t, err)
	assert.Equal(t, before, afterUpdate)

	afterDelete, err := s.Delete(ctx, "zzz")
	require.NoError(t, err)
	assert.Equal(t, before, afterDelete)

	assert.Equal(t, 0, b.Saves(), "a miss must not write")
}

func TestRecordStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(rec("a", "Ann"), rec("b", "Bob"), rec("c", "Cy"))

	list, err := s.Delete(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	got, err := s.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(rec("a", "Ann"))

	list, err := s.List(ctx)
	require.NoError(t, err)
	list[0].Name = "Mutated"

	got, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

type failingBackend struct {
	MemoryBackend
	saveErr error
	loadErr error
}

func (f *failingBackend) Load(ctx context.Context) ([]entities.Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryBackend.Load(ctx)
}

func (f *failingBackend) Save(ctx context.Context, records []entities.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryBackend.Save(ctx, records)
}

func TestRecordStore_BackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	s := NewRecordStore(&failingBackend{saveErr: boom}, zerolog.Nop())
	_, err := s.Add(ctx, rec("a", "Ann"))
	assert.ErrorIs(t, err, boom)

	s = NewRecordStore(&failingBackend{loadErr: boom}, zerolog.Nop())
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = s.FindByID(ctx, "a")
	assert.ErrorIs(t, err, boom)
}
