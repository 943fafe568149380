package reconcile

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/store"
)

func record(id, name string) entities.Record {
	return entities.Record{
		ID: id, Name: name, Age: 40, Gender: "Male", Phone: "1", Address: "A",
		LastVisit: "2024-01-01", Condition: "C",
	}
}

func setup(seed ...entities.Record) (*Reconciler, *store.RecordStore, *store.MemoryBackend) {
	b := store.NewMemoryBackend(seed...)
	s := store.NewRecordStore(b, zerolog.Nop())
	return New(s, zerolog.Nop()), s, b
}

func TestReconcile_HitSurfacesStoredRecord(t *testing.T) {
	ctx := context.Background()
	old := record("X", "Old")
	rc, s, b := setup(old)

	res, err := rc.Reconcile(ctx, record("X", "New"))
	require.NoError(t, err)
	assert.True(t, res.Known)
	assert.Equal(t, old, res.Record)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entities.Record{old}, list)
	assert.Equal(t, 0, b.Saves())
}

func TestReconcile_MissInsertsScannedRecord(t *testing.T) {
	ctx := context.Background()
	rc, s, _ := setup(record("A", "Ann"))

	scanned := record("Y", "Yan")
	res, err := rc.Reconcile(ctx, scanned)
	require.NoError(t, err)
	assert.False(t, res.Known)
	assert.Equal(t, scanned, res.Record)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, scanned, list[1])
}

func TestReconcile_UnresolvedGetsFreshID(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend()
	s := store.NewRecordStore(b, zerolog.Nop())
	ids := []string{"gen-1", "gen-2"}
	rc := New(s, zerolog.Nop(), WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	first := record(entities.UnresolvedID, "One")
	second := record(entities.UnresolvedID, "Two")

	r1, err := rc.Reconcile(ctx, first)
	require.NoError(t, err)
	r2, err := rc.Reconcile(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "gen-1", r1.Record.ID)
	assert.Equal(t, "gen-2", r2.Record.ID)
	assert.False(t, r2.Known)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestExistingWins(t *testing.T) {
	stored := record("X", "Old")
	assert.Equal(t, stored, ExistingWins{}.Merge(stored, record("X", "New")))
}

type scannedWins struct{}

func (scannedWins) Merge(_, scanned entities.Record) entities.Record { return scanned }

func TestReconcile_CustomPolicyWrites(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend(record("X", "Old"))
	s := store.NewRecordStore(b, zerolog.Nop())
	rc := New(s, zerolog.Nop(), WithPolicy(scannedWins{}))

	res, err := rc.Reconcile(ctx, record("X", "New"))
	require.NoError(t, err)
	assert.True(t, res.Known)
	assert.Equal(t, "New", res.Record.Name)
	assert.Equal(t, 1, b.Saves())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	rc, _, b := setup(record("patient_7", "Seven"))

	got, err := rc.Resolve(ctx, "patient_7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Seven", got.Name)

	got, err = rc.Resolve(ctx, "patient_8")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, b.Saves())
}
